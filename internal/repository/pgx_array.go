package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/teamhub/internal/db"
)

type builder interface {
	Build(ctx context.Context) (string, []any, error)
}

// addToSet appends value to the text[] column of row id unless it is already present.
func addToSet(ctx context.Context, e db.Executor, table, column, id, value string) error {
	q := psql.Update(
		um.Table(table),
		um.SetCol(column).To(psql.F("array_append", psql.Quote(column), psql.Arg(value))),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
		um.Where(psql.Raw("NOT (? = ANY("+column+"))", value)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return errors.Wrapf(err, "add to %s.%s", table, column)
	}

	return nil
}

func removeFromSet(ctx context.Context, e db.Executor, table, column, id, value string) error {
	q := psql.Update(
		um.Table(table),
		um.SetCol(column).To(psql.F("array_remove", psql.Quote(column), psql.Arg(value))),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return errors.Wrapf(err, "remove from %s.%s", table, column)
	}

	return nil
}
