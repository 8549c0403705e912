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
)

type User struct {
	ID               string    `db:"id" validate:"required"`
	Name             string    `db:"name"`
	Username         string    `db:"username" validate:"required,min=3"`
	Email            string    `db:"email" validate:"required,email"`
	PasswordHash     string    `db:"password_hash" validate:"required"`
	RefreshToken     string    `db:"refresh_token" validate:"required"`
	RefreshExpiresAt time.Time `db:"refresh_expires_at"`
	TeamIDs          []string  `db:"team_ids"`
	CreatedAt        time.Time `db:"created_at"`
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdateRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// AddTeam and RemoveTeam maintain the derived team list with set semantics.
	AddTeam(ctx context.Context, userID, teamID string) error
	RemoveTeam(ctx context.Context, userID, teamID string) error
}

var userColumns = []any{"id", "name", "username", "email", "password_hash", "refresh_token", "refresh_expires_at", "team_ids", "created_at"}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func (p *pgxUserRepository) Create(ctx context.Context, user *User) error {
	if err := validateRecord(user); err != nil {
		return err
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users", "id", "name", "username", "email", "password_hash", "refresh_token", "refresh_expires_at", "team_ids", "created_at"),
		im.Values(
			psql.Arg(user.ID), psql.Arg(user.Name), psql.Arg(user.Username), psql.Arg(user.Email),
			psql.Arg(user.PasswordHash), psql.Arg(user.RefreshToken), psql.Arg(user.RefreshExpiresAt),
			psql.Arg(nonNil(user.TeamIDs)), psql.Arg(user.CreatedAt),
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

	return errors.Wrap(err, "insert user")
}

func (p *pgxUserRepository) Get(ctx context.Context, userID string) (*User, error) {
	return p.getBy(ctx, "id", userID)
}

func (p *pgxUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.getBy(ctx, "email", email)
}

func (p *pgxUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return p.getBy(ctx, "username", username)
}

func (p *pgxUserRepository) getBy(ctx context.Context, column string, value string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(userColumns...),
		sm.From("users"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}

	return user, nil
}

func (p *pgxUserRepository) UpdateRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("users"),
		um.SetCol("refresh_token").ToArg(token),
		um.SetCol("refresh_expires_at").ToArg(expiresAt),
		um.Where(psql.Quote("id").EQ(psql.Arg(userID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return errors.Wrap(err, "update refresh token")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (p *pgxUserRepository) AddTeam(ctx context.Context, userID, teamID string) error {
	return addToSet(ctx, db.GetPgxExecutorFromContext(ctx, p.pool), "users", "team_ids", userID, teamID)
}

func (p *pgxUserRepository) RemoveTeam(ctx context.Context, userID, teamID string) error {
	return removeFromSet(ctx, db.GetPgxExecutorFromContext(ctx, p.pool), "users", "team_ids", userID, teamID)
}
