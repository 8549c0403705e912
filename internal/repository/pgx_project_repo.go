package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
)

type Project struct {
	ID          string    `db:"id" validate:"required"`
	Title       string    `db:"title" validate:"required"`
	Description string    `db:"description"`
	TeamID      string    `db:"team_id" validate:"required"`
	CreatedAt   time.Time `db:"created_at"`
}

type ProjectPatch struct {
	ID          string  `db:"id"`
	Title       *string `db:"title" validate:"omitnil,min=1"`
	Description *string `db:"description"`
}

type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	Get(ctx context.Context, projectID string) (*Project, error)
	Patch(ctx context.Context, patch *ProjectPatch) (*Project, error)
	ListForTeam(ctx context.Context, teamID string) ([]*Project, error)
}

var projectColumns = []any{"id", "title", "description", "team_id", "created_at"}

type pgxProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgxProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &pgxProjectRepository{pool: pool}
}

func (p *pgxProjectRepository) Create(ctx context.Context, project *Project) error {
	if err := validateRecord(project); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("projects", "id", "title", "description", "team_id", "created_at"),
		im.Values(psql.Arg(project.ID), psql.Arg(project.Title), psql.Arg(project.Description), psql.Arg(project.TeamID), psql.Arg(project.CreatedAt)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return errors.Wrap(err, "insert project")
}

func (p *pgxProjectRepository) Get(ctx context.Context, projectID string) (*Project, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(projectColumns...),
		sm.From("projects"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(projectID))),
	)

	return p.one(ctx, e, q)
}

func (p *pgxProjectRepository) Patch(ctx context.Context, patch *ProjectPatch) (*Project, error) {
	if err := validateRecord(patch); err != nil {
		return nil, err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 2)

	if patch.Title != nil {
		sets = append(sets, um.SetCol("title").ToArg(*patch.Title))
	}
	if patch.Description != nil {
		sets = append(sets, um.SetCol("description").ToArg(*patch.Description))
	}

	if len(sets) == 0 {
		return p.Get(ctx, patch.ID)
	}

	q := psql.Update(
		um.Table("projects"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(projectColumns...),
	)

	q.Apply(sets...)

	return p.one(ctx, e, q)
}

func (p *pgxProjectRepository) ListForTeam(ctx context.Context, teamID string) ([]*Project, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(projectColumns...),
		sm.From("projects"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select projects")
	}

	projects, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Project])
	if err != nil {
		return nil, errors.Wrap(err, "scan projects")
	}

	return projects, nil
}

func (p *pgxProjectRepository) one(ctx context.Context, e db.Executor, q builder) (*Project, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query project")
	}

	project, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Project])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan project")
	}

	return project, nil
}
