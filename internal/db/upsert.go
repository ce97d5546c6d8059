package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a merge of staged rows into a target table.
type UpsertConfig struct {
	Target  Target
	Columns []string
	// Keys form the target's unique constraint. Every other column is overwritten on
	// conflict.
	Keys []string
}

func (c UpsertConfig) validate() error {
	if c.Target.Table == "" {
		return eris.New("db: upsert: no target table")
	}
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.Keys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

// stagingTable is the temp table rows are copied into before the merge.
func (c UpsertConfig) stagingTable() string {
	return "stage_" + c.Target.Table
}

// mergeSQL builds the INSERT ... ON CONFLICT statement from the staging table.
func (c UpsertConfig) mergeSQL() string {
	keys := make(map[string]bool, len(c.Keys))
	for _, k := range c.Keys {
		keys[k] = true
	}
	var set []string
	for _, col := range c.Columns {
		if keys[col] {
			continue
		}
		q := pgx.Identifier{col}.Sanitize()
		set = append(set, q+" = EXCLUDED."+q)
	}

	action := "DO NOTHING"
	if len(set) > 0 {
		action = "DO UPDATE SET " + strings.Join(set, ", ")
	}
	cols := quoteAll(c.Columns)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		c.Target.Sanitize(), cols, cols,
		pgx.Identifier{c.stagingTable()}.Sanitize(),
		quoteAll(c.Keys), action,
	)
}

// BulkUpsert copies rows into a temp table shaped like the target and merges them in
// one transaction. It returns the rows inserted or updated.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := pgx.Identifier{cfg.stagingTable()}
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), cfg.Target.Sanitize())
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Target)
	}
	if _, err := tx.CopyFrom(ctx, staging, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY staging rows for %s", cfg.Target)
	}

	tag, err := tx.Exec(ctx, cfg.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Target)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
