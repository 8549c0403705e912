package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/idgen"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

// ProjectService makes single-statement writes and so needs no transactor.
type ProjectService struct {
	bus *event.Bus

	projects repository.ProjectRepository
	teams    TeamLookup
	ids      idgen.Generator
	now      func() time.Time
}

func NewProjectService(bus *event.Bus) *ProjectService {
	return &ProjectService{
		bus: bus,
		ids: idgen.New(),
		now: time.Now,
	}
}

// Create returns as soon as the project row exists; the team's project list
// picks it up once the CREATE_PROJECT handler ran.
func (p *ProjectService) Create(ctx context.Context, title, description, teamID string) (*model.Project, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating project", zap.String("team_id", teamID), zap.String("title", title))

	if _, svcErr := p.teams.GetTeamSummary(ctx, teamID); svcErr != nil {
		return nil, svcErr
	}

	project := &repository.Project{
		ID:          p.ids.NewID(),
		Title:       title,
		Description: description,
		TeamID:      teamID,
		CreatedAt:   p.now(),
	}

	err := p.projects.Create(ctx, project)
	if errors.Is(err, repository.ErrInvalid) {
		l.Warn("invalid project", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInvalidInput, "invalid project")
	}
	if err != nil {
		l.Error("failed to create project", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to create project")
	}

	p.bus.Emit(ctx, event.CreateProject{ProjectID: project.ID, TeamID: teamID})

	l.Debug("project created", zap.String("project_id", project.ID))

	return toProject(project), nil
}

func (p *ProjectService) Get(ctx context.Context, projectID string) (*model.Project, *Error) {
	l := logger.FromContext(ctx)

	project, err := p.projects.Get(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("project not found", zap.String("project_id", projectID))
		return nil, NewError(ErrorCodeNotFound, "project not found")
	}
	if err != nil {
		l.Error("failed to get project", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get project")
	}

	return toProject(project), nil
}

// Update merges the non-nil fields of in into the project.
func (p *ProjectService) Update(ctx context.Context, projectID string, in *model.ProjectUpdate) (*model.Project, *Error) {
	l := logger.FromContext(ctx)

	project, err := p.projects.Patch(ctx, &repository.ProjectPatch{
		ID:          projectID,
		Title:       in.Title,
		Description: in.Description,
	})
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("project not found", zap.String("project_id", projectID))
		return nil, NewError(ErrorCodeNotFound, "project not found")
	}
	if errors.Is(err, repository.ErrInvalid) {
		l.Warn("invalid project update", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeInvalidInput, "invalid project update")
	}
	if err != nil {
		l.Error("failed to update project", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to update project")
	}

	return toProject(project), nil
}

// ListForTeam reads projects by their team reference, independent of the
// team's own project list.
func (p *ProjectService) ListForTeam(ctx context.Context, teamID string) ([]*model.Project, *Error) {
	projects, err := p.projects.ListForTeam(ctx, teamID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list projects", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list projects")
	}

	out := make([]*model.Project, 0, len(projects))
	for _, project := range projects {
		out = append(out, toProject(project))
	}
	return out, nil
}

func toProject(p *repository.Project) *model.Project {
	return &model.Project{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		TeamID:      p.TeamID,
		CreatedAt:   p.CreatedAt,
	}
}

func (p *ProjectService) WithProjectRepo(r repository.ProjectRepository) *ProjectService {
	p.projects = r
	return p
}

func (p *ProjectService) WithTeams(t TeamLookup) *ProjectService {
	p.teams = t
	return p
}

func (p *ProjectService) WithIDGenerator(g idgen.Generator) *ProjectService {
	p.ids = g
	return p
}

func (p *ProjectService) WithClock(now func() time.Time) *ProjectService {
	p.now = now
	return p
}
