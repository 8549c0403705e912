package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/model"
)

type Team struct {
	ID          string           `db:"id" validate:"required"`
	Name        string           `db:"name" validate:"required,min=3,max=12"`
	Description string           `db:"description"`
	Avatar      string           `db:"avatar"`
	Banner      string           `db:"banner"`
	LeaderID    string           `db:"leader_id" validate:"required"`
	Status      model.TeamStatus `db:"status" validate:"oneof=active inactive disbanded frozen archived"`
	IsPublic    bool             `db:"is_public"`
	ChatID      string           `db:"chat_id"`
	MemberIDs   []string         `db:"member_ids"`
	ProjectIDs  []string         `db:"project_ids"`
	CreatedAt   time.Time        `db:"created_at"`
}

type TeamRepository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, teamID string) (*Team, error)
	GetMany(ctx context.Context, teamIDs []string) ([]*Team, error)
	// ListPublicActive returns one page of public active teams in creation order and the total count.
	ListPublicActive(ctx context.Context, offset, limit int) ([]*Team, int, error)
	SetChat(ctx context.Context, teamID, chatID string) error
	AddProject(ctx context.Context, teamID, projectID string) error
	AddMember(ctx context.Context, teamID, userID string) error
	RemoveMember(ctx context.Context, teamID, userID string) error
}

var teamColumns = []any{"id", "name", "description", "avatar", "banner", "leader_id", "status", "is_public", "chat_id", "member_ids", "project_ids", "created_at"}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *Team) error {
	if err := validateRecord(team); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams", "id", "name", "description", "avatar", "banner", "leader_id", "status", "is_public", "chat_id", "member_ids", "project_ids", "created_at"),
		im.Values(
			psql.Arg(team.ID), psql.Arg(team.Name), psql.Arg(team.Description), psql.Arg(team.Avatar),
			psql.Arg(team.Banner), psql.Arg(team.LeaderID), psql.Arg(team.Status), psql.Arg(team.IsPublic),
			psql.Arg(team.ChatID), psql.Arg(nonNil(team.MemberIDs)), psql.Arg(nonNil(team.ProjectIDs)),
			psql.Arg(team.CreatedAt),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return errors.Wrap(err, "insert team")
}

func (p *pgxTeamRepository) Get(ctx context.Context, teamID string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("teams"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select team")
	}

	team, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Team])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan team")
	}

	return team, nil
}

func (p *pgxTeamRepository) GetMany(ctx context.Context, teamIDs []string) ([]*Team, error) {
	if len(teamIDs) == 0 {
		return []*Team{}, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("teams"),
		sm.Where(psql.Raw("id = ANY(?)", teamIDs)),
		sm.OrderBy("created_at"),
	)

	return p.collect(ctx, e, q)
}

func (p *pgxTeamRepository) ListPublicActive(ctx context.Context, offset, limit int) ([]*Team, int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	where := sm.Where(
		psql.Quote("is_public").EQ(psql.Arg(true)).
			And(psql.Quote("status").EQ(psql.Arg(model.TeamStatusActive))),
	)

	countQ := psql.Select(
		sm.Columns("count(*)"),
		sm.From("teams"),
		where,
	)

	sql, args, err := countQ.Build(ctx)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err = e.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count public teams")
	}

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("teams"),
		where,
		sm.OrderBy("created_at"),
		sm.OrderBy("id"),
		sm.Offset(int64(offset)),
		sm.Limit(int64(limit)),
	)

	teams, err := p.collect(ctx, e, q)
	if err != nil {
		return nil, 0, err
	}

	return teams, total, nil
}

func (p *pgxTeamRepository) collect(ctx context.Context, e db.Executor, q builder) ([]*Team, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select teams")
	}

	teams, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Team])
	if err != nil {
		return nil, errors.Wrap(err, "scan teams")
	}

	return teams, nil
}

func (p *pgxTeamRepository) SetChat(ctx context.Context, teamID, chatID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("teams"),
		um.SetCol("chat_id").ToArg(chatID),
		um.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "set team chat")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxTeamRepository) AddProject(ctx context.Context, teamID, projectID string) error {
	return addToSet(ctx, db.GetPgxExecutorFromContext(ctx, p.pool), "teams", "project_ids", teamID, projectID)
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, teamID, userID string) error {
	return addToSet(ctx, db.GetPgxExecutorFromContext(ctx, p.pool), "teams", "member_ids", teamID, userID)
}

func (p *pgxTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	return removeFromSet(ctx, db.GetPgxExecutorFromContext(ctx, p.pool), "teams", "member_ids", teamID, userID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
