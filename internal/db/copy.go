package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Target names a table in a schema.
type Target struct {
	Schema string
	Table  string
}

func (t Target) ident() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Table}
	}
	return pgx.Identifier{t.Schema, t.Table}
}

// String returns the dotted, unquoted name used in error messages.
func (t Target) String() string {
	if t.Schema == "" {
		return t.Table
	}
	return t.Schema + "." + t.Table
}

// Sanitize returns the quoted name for use in SQL text.
func (t Target) Sanitize() string {
	return t.ident().Sanitize()
}

// Copy streams rows into the target with the COPY protocol. Empty input is a no-op.
func Copy(ctx context.Context, pool Pool, target Target, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, target.ident(), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", target)
	}
	return n, nil
}
