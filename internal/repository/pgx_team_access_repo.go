package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
	"github.com/yakoovad/teamhub/internal/model"
)

type TeamAccess struct {
	ID     string                 `db:"id" validate:"required"`
	UserID string                 `db:"user_id" validate:"required"`
	TeamID string                 `db:"team_id" validate:"required"`
	Role   model.TeamRole         `db:"team_role" validate:"oneof=leader moderator participant"`
	Status model.TeamAccessStatus `db:"status" validate:"oneof=pending declined active inactive"`
}

type TeamAccessRepository interface {
	Create(ctx context.Context, access *TeamAccess) error
	Get(ctx context.Context, accessID string) (*TeamAccess, error)
	GetForUserInTeam(ctx context.Context, userID, teamID string) (*TeamAccess, error)
	// Upsert keeps at most one record per (user, team): an existing record gets the new role and status.
	Upsert(ctx context.Context, access *TeamAccess) (*TeamAccess, error)
	SetStatus(ctx context.Context, userID, teamID string, status model.TeamAccessStatus) (*TeamAccess, error)
	SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) (*TeamAccess, error)
	Delete(ctx context.Context, accessID string) error
	ListForUser(ctx context.Context, userID string, excludeDeclined bool) ([]*TeamAccess, error)
	ListForTeam(ctx context.Context, teamID string) ([]*TeamAccess, error)
}

var accessColumns = []any{"id", "user_id", "team_id", "team_role", "status"}

type pgxTeamAccessRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamAccessRepository(pool *pgxpool.Pool) TeamAccessRepository {
	return &pgxTeamAccessRepository{pool: pool}
}

func (p *pgxTeamAccessRepository) Create(ctx context.Context, access *TeamAccess) error {
	if err := validateRecord(access); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_accesses", "id", "user_id", "team_id", "team_role", "status"),
		im.Values(psql.Arg(access.ID), psql.Arg(access.UserID), psql.Arg(access.TeamID), psql.Arg(access.Role), psql.Arg(access.Status)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}

	return errors.Wrap(err, "insert team access")
}

func (p *pgxTeamAccessRepository) Upsert(ctx context.Context, access *TeamAccess) (*TeamAccess, error) {
	if err := validateRecord(access); err != nil {
		return nil, err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_accesses", "id", "user_id", "team_id", "team_role", "status"),
		im.Values(psql.Arg(access.ID), psql.Arg(access.UserID), psql.Arg(access.TeamID), psql.Arg(access.Role), psql.Arg(access.Status)),
		im.OnConflict(psql.Quote("user_id"), psql.Quote("team_id")).DoUpdate(
			im.SetCol("team_role").ToArg(access.Role),
			im.SetCol("status").ToArg(access.Status),
		),
		im.Returning(accessColumns...),
	)

	return p.one(ctx, e, q)
}

func (p *pgxTeamAccessRepository) Get(ctx context.Context, accessID string) (*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accessColumns...),
		sm.From("team_accesses"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(accessID))),
	)

	return p.one(ctx, e, q)
}

func (p *pgxTeamAccessRepository) GetForUserInTeam(ctx context.Context, userID, teamID string) (*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accessColumns...),
		sm.From("team_accesses"),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID)).And(psql.Quote("team_id").EQ(psql.Arg(teamID)))),
	)

	return p.one(ctx, e, q)
}

func (p *pgxTeamAccessRepository) SetStatus(ctx context.Context, userID, teamID string, status model.TeamAccessStatus) (*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team_accesses"),
		um.SetCol("status").ToArg(status),
		um.Where(psql.Quote("user_id").EQ(psql.Arg(userID)).And(psql.Quote("team_id").EQ(psql.Arg(teamID)))),
		um.Returning(accessColumns...),
	)

	return p.one(ctx, e, q)
}

func (p *pgxTeamAccessRepository) SetRole(ctx context.Context, userID, teamID string, role model.TeamRole) (*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("team_accesses"),
		um.SetCol("team_role").ToArg(role),
		um.Where(psql.Quote("user_id").EQ(psql.Arg(userID)).And(psql.Quote("team_id").EQ(psql.Arg(teamID)))),
		um.Returning(accessColumns...),
	)

	return p.one(ctx, e, q)
}

func (p *pgxTeamAccessRepository) Delete(ctx context.Context, accessID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_accesses"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(accessID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	commandTag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "delete team access")
	}

	if commandTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxTeamAccessRepository) ListForUser(ctx context.Context, userID string, excludeDeclined bool) ([]*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accessColumns...),
		sm.From("team_accesses"),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy("id"),
	)
	if excludeDeclined {
		q.Apply(sm.Where(psql.Quote("status").NE(psql.Arg(model.TeamAccessStatusDeclined))))
	}

	return p.many(ctx, e, q)
}

func (p *pgxTeamAccessRepository) ListForTeam(ctx context.Context, teamID string) ([]*TeamAccess, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accessColumns...),
		sm.From("team_accesses"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("id"),
	)

	return p.many(ctx, e, q)
}

func (p *pgxTeamAccessRepository) one(ctx context.Context, e db.Executor, q builder) (*TeamAccess, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query team access")
	}

	access, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[TeamAccess])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan team access")
	}

	return access, nil
}

func (p *pgxTeamAccessRepository) many(ctx context.Context, e db.Executor, q builder) ([]*TeamAccess, error) {
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query team accesses")
	}

	accesses, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[TeamAccess])
	if err != nil {
		return nil, errors.Wrap(err, "scan team accesses")
	}

	return accesses, nil
}
