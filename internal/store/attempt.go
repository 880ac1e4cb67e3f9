package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// errNotApplicable marks a strategy that cannot run against the current schema
var errNotApplicable = errors.New("strategy not applicable")

const (
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"
)

// attempt is one way of answering a query. Deployments differ in which optional
// columns exist, so reads try an ordered list and skip the ones the schema rejects.
type attempt[T any] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func notApplicable(err error) bool {
	return errors.Is(err, errNotApplicable) || pgCode(err) == pgUndefinedColumn
}

// firstApplicable runs attempts in order and returns the first result that is not
// "not applicable". Any other error stops the chain.
func firstApplicable[T any](ctx context.Context, attempts ...attempt[T]) (T, error) {
	var zero T
	for _, a := range attempts {
		out, err := a.run(ctx)
		if err == nil {
			return out, nil
		}
		if notApplicable(err) {
			zerolog.Ctx(ctx).Debug().Str("strategy", a.name).Msg("Query strategy not applicable, trying next")
			continue
		}
		return zero, fmt.Errorf("%s: %w", a.name, err)
	}
	return zero, fmt.Errorf("no applicable query strategy: %w", errNotApplicable)
}
