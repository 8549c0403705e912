package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/yakoovad/teamhub/internal/cache"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/event"
	"github.com/yakoovad/teamhub/internal/idgen"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/pkg/logger"
	"go.uber.org/zap"
)

const maxPageSize = 100

var pageEncoding = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type TeamService struct {
	tx  db.Transactor
	bus *event.Bus

	teams repository.TeamRepository

	identity AccessDirectory
	chats    ChatProvisioner
	projects ProjectLister
	assets   AssetStorer
	pages    cache.Cache
	ids      idgen.Generator
	now      func() time.Time
}

func NewTeamService(tx db.Transactor, bus *event.Bus) *TeamService {
	return &TeamService{
		tx:  tx,
		bus: bus,
		ids: idgen.New(),
		now: time.Now,
	}
}

// CreateTeam persists the team, grants the leader access and provisions the
// chat in one transaction.
func (t *TeamService) CreateTeam(ctx context.Context, in *model.CreateTeam) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Info("creating team", zap.String("team_name", in.Name), zap.String("leader_id", in.LeaderID))

	leader, svcErr := t.identity.GetUser(ctx, in.LeaderID)
	if svcErr != nil {
		return nil, svcErr
	}

	isPublic := true
	if in.IsPublic != nil {
		isPublic = *in.IsPublic
	}

	team := &repository.Team{
		ID:          t.ids.NewID(),
		Name:        in.Name,
		Description: in.Description,
		Avatar:      t.store(ctx, in.Avatar),
		Banner:      t.store(ctx, in.Banner),
		LeaderID:    leader.ID,
		Status:      model.TeamStatusActive,
		IsPublic:    isPublic,
		MemberIDs:   []string{},
		ProjectIDs:  []string{},
		CreatedAt:   t.now(),
	}

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		err := t.teams.Create(txCtx, team)
		if errors.Is(err, repository.ErrAlreadyExists) {
			l.Warn("team already exists", zap.String("team_name", in.Name))
			return NewError(ErrorCodeConflict, "team name already exists")
		}
		if errors.Is(err, repository.ErrInvalid) {
			l.Warn("invalid team", zap.String("team_name", in.Name), zap.Error(err))
			return NewError(ErrorCodeInvalidInput, "team name must be 3 to 12 characters")
		}
		if err != nil {
			l.Error("failed to create team", zap.String("team_name", in.Name), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to create team")
		}

		if _, svcErr := t.identity.GrantLeader(txCtx, leader.ID, team.ID); svcErr != nil {
			l.Error("failed to grant leader access", zap.String("team_id", team.ID), zap.Error(svcErr))
			return svcErr
		}

		chat, svcErr := t.chats.CreateChat(txCtx, team.ID)
		if svcErr != nil {
			l.Error("failed to provision team chat", zap.String("team_id", team.ID), zap.Error(svcErr))
			return svcErr
		}
		if err = t.teams.SetChat(txCtx, team.ID, chat.ID); err != nil {
			l.Error("failed to link team chat", zap.String("team_id", team.ID), zap.Error(err))
			return NewError(ErrorCodeInternal, "failed to link team chat")
		}
		team.ChatID = chat.ID

		return nil
	})
	if svcErr := asError(err); svcErr != nil {
		return nil, svcErr
	}

	t.bus.Emit(ctx, event.CreateTeam{UserID: leader.ID, TeamID: team.ID})

	l.Debug("team created", zap.String("team_id", team.ID))

	return toTeam(team, leader, []*model.Project{}), nil
}

func (t *TeamService) store(ctx context.Context, data string) string {
	if t.assets == nil {
		return ""
	}
	return t.assets.Store(ctx, data)
}

// GetTeamSummary returns the team with its leader and linked projects.
func (t *TeamService) GetTeamSummary(ctx context.Context, teamID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx)
	l.Debug("getting team", zap.String("team_id", teamID))

	team, err := t.teams.Get(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("team not found", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team")
	}

	return t.summarize(ctx, team)
}

// GetTeamWithMembers adds the holders of ACTIVE accesses to the summary.
func (t *TeamService) GetTeamWithMembers(ctx context.Context, teamID string) (*model.TeamWithMembers, *Error) {
	team, svcErr := t.GetTeamSummary(ctx, teamID)
	if svcErr != nil {
		return nil, svcErr
	}

	accesses, svcErr := t.identity.ListAccessesForTeam(ctx, teamID)
	if svcErr != nil {
		return nil, svcErr
	}

	members := make([]*model.User, 0, len(accesses))
	for _, a := range accesses {
		if a.Status == model.TeamAccessStatusActive {
			members = append(members, a.User)
		}
	}

	return &model.TeamWithMembers{Team: team, Members: members}, nil
}

// ListTeamsForUser returns every team the user holds a non-declined access in.
func (t *TeamService) ListTeamsForUser(ctx context.Context, userID string) ([]*model.Team, *Error) {
	l := logger.FromContext(ctx)

	accesses, svcErr := t.identity.ListAccessesForUser(ctx, userID)
	if svcErr != nil {
		return nil, svcErr
	}

	ids := make([]string, 0, len(accesses))
	for _, a := range accesses {
		ids = append(ids, a.TeamID)
	}
	if len(ids) == 0 {
		return []*model.Team{}, nil
	}

	teams, err := t.teams.GetMany(ctx, ids)
	if err != nil {
		l.Error("failed to get teams", zap.String("user_id", userID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list teams")
	}

	return t.summarizeAll(ctx, teams)
}

// ListActivePublicTeams is read-through cached per (page, pageSize); a cached
// page is served until its TTL runs out even if teams changed since.
func (t *TeamService) ListActivePublicTeams(ctx context.Context, page, pageSize int) (*model.TeamPage, *Error) {
	l := logger.FromContext(ctx)

	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		return nil, NewError(ErrorCodeInvalidInput, fmt.Sprintf("page must be >= 1 and page size between 1 and %d", maxPageSize))
	}

	key := fmt.Sprintf("activePublicTeams:%d:%d", page, pageSize)

	if t.pages != nil {
		raw, ok, err := t.pages.Get(ctx, key)
		if err != nil {
			l.Warn("team page cache read failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			var cached model.TeamPage
			if err = cbor.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			l.Warn("dropping undecodable team page", zap.String("key", key), zap.Error(err))
		}
	}

	teams, total, err := t.teams.ListPublicActive(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		l.Error("failed to list public teams", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list teams")
	}

	items, svcErr := t.summarizeAll(ctx, teams)
	if svcErr != nil {
		return nil, svcErr
	}
	result := &model.TeamPage{Items: items, TotalCount: total}

	if t.pages == nil {
		return result, nil
	}

	// Serve the decoded copy so a miss and a later hit are identical.
	raw, err := pageEncoding.Marshal(result)
	if err != nil {
		l.Error("failed to encode team page", zap.Error(err))
		return result, nil
	}
	if err = t.pages.Set(ctx, key, raw); err != nil {
		l.Warn("team page cache write failed", zap.String("key", key), zap.Error(err))
	}

	var decoded model.TeamPage
	if err = cbor.Unmarshal(raw, &decoded); err != nil {
		l.Error("failed to decode team page", zap.Error(err))
		return result, nil
	}

	return &decoded, nil
}

func (t *TeamService) summarizeAll(ctx context.Context, teams []*repository.Team) ([]*model.Team, *Error) {
	out := make([]*model.Team, 0, len(teams))
	for _, team := range teams {
		summary, svcErr := t.summarize(ctx, team)
		if svcErr != nil {
			return nil, svcErr
		}
		out = append(out, summary)
	}
	return out, nil
}

// summarize resolves the leader and the projects already linked to the team.
func (t *TeamService) summarize(ctx context.Context, team *repository.Team) (*model.Team, *Error) {
	leader, svcErr := t.identity.GetUser(ctx, team.LeaderID)
	if svcErr != nil {
		return nil, svcErr
	}

	linked := []*model.Project{}
	if len(team.ProjectIDs) > 0 {
		projects, svcErr := t.projects.ListForTeam(ctx, team.ID)
		if svcErr != nil {
			return nil, svcErr
		}
		for _, p := range projects {
			if slices.Contains(team.ProjectIDs, p.ID) {
				linked = append(linked, p)
			}
		}
	}

	return toTeam(team, leader, linked), nil
}

// RegisterHandlers subscribes the team side of every cross-entity event.
func (t *TeamService) RegisterHandlers() {
	event.Subscribe(t.bus, func(ctx context.Context, e event.CheckTeamExistence) error {
		_, err := t.teams.Get(ctx, e.TeamID)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, fmt.Sprintf("team %s not found", e.TeamID))
		}
		return err
	})
	event.Subscribe(t.bus, func(ctx context.Context, e event.CreateProject) error {
		return t.teams.AddProject(ctx, e.TeamID, e.ProjectID)
	})
	event.Subscribe(t.bus, func(ctx context.Context, e event.CreateTeam) error {
		return t.teams.AddMember(ctx, e.TeamID, e.UserID)
	})
	event.Subscribe(t.bus, func(ctx context.Context, e event.AddUserToTeam) error {
		return t.teams.AddMember(ctx, e.TeamID, e.UserID)
	})
	event.Subscribe(t.bus, func(ctx context.Context, e event.RemoveUserFromTeam) error {
		return t.teams.RemoveMember(ctx, e.TeamID, e.UserID)
	})
}

func toTeam(team *repository.Team, leader *model.User, projects []*model.Project) *model.Team {
	return &model.Team{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		Avatar:      team.Avatar,
		Banner:      team.Banner,
		Leader:      leader,
		Status:      team.Status,
		IsPublic:    team.IsPublic,
		ChatID:      team.ChatID,
		Projects:    projects,
		CreatedAt:   team.CreatedAt,
	}
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithIdentity(d AccessDirectory) *TeamService {
	t.identity = d
	return t
}

func (t *TeamService) WithChats(c ChatProvisioner) *TeamService {
	t.chats = c
	return t
}

func (t *TeamService) WithProjects(p ProjectLister) *TeamService {
	t.projects = p
	return t
}

func (t *TeamService) WithAssets(a AssetStorer) *TeamService {
	t.assets = a
	return t
}

func (t *TeamService) WithPageCache(c cache.Cache) *TeamService {
	t.pages = c
	return t
}

func (t *TeamService) WithIDGenerator(g idgen.Generator) *TeamService {
	t.ids = g
	return t
}

func (t *TeamService) WithClock(now func() time.Time) *TeamService {
	t.now = now
	return t
}
