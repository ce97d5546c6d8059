package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usersTarget = Target{Schema: "mobility", Table: "users"}

func TestBulkUpsert_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     UpsertConfig
		rows    [][]any
		wantErr string
	}{
		{
			name: "empty rows",
			cfg:  UpsertConfig{Target: usersTarget, Columns: []string{"user_id"}, Keys: []string{"user_id"}},
		},
		{
			name:    "no table",
			cfg:     UpsertConfig{Columns: []string{"user_id"}, Keys: []string{"user_id"}},
			rows:    [][]any{{"u1"}},
			wantErr: "no target table",
		},
		{
			name:    "no columns",
			cfg:     UpsertConfig{Target: usersTarget, Keys: []string{"user_id"}},
			rows:    [][]any{{"u1"}},
			wantErr: "no columns specified",
		},
		{
			name:    "no conflict keys",
			cfg:     UpsertConfig{Target: usersTarget, Columns: []string{"user_id"}},
			rows:    [][]any{{"u1"}},
			wantErr: "no conflict keys specified",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := BulkUpsert(context.Background(), nil, tt.cfg, tt.rows)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Zero(t, n)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		want string
	}{
		{
			name: "updates non-key columns",
			cfg:  UpsertConfig{Target: usersTarget, Columns: []string{"dataset_version", "user_id", "region"}, Keys: []string{"dataset_version", "user_id"}},
			want: `INSERT INTO "mobility"."users" ("dataset_version", "user_id", "region") SELECT "dataset_version", "user_id", "region" FROM "stage_users" ON CONFLICT ("dataset_version", "user_id") DO UPDATE SET "region" = EXCLUDED."region"`,
		},
		{
			name: "keys only",
			cfg:  UpsertConfig{Target: Target{Table: "seen"}, Columns: []string{"user_id"}, Keys: []string{"user_id"}},
			want: `INSERT INTO "seen" ("user_id") SELECT "user_id" FROM "stage_seen" ON CONFLICT ("user_id") DO NOTHING`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.mergeSQL())
		})
	}
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"user_id", "region"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TEMP TABLE "stage_users" (LIKE "mobility"."users"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_users"}, cols).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("user_id") DO UPDATE SET "region" = EXCLUDED."region"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Target:  usersTarget,
		Columns: cols,
		Keys:    []string{"user_id"},
	}, [][]any{{"u1", "Lagunes"}, {"u2", "Gbeke"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_users"}, []string{"user_id"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Target:  Target{Table: "users"},
		Columns: []string{"user_id"},
		Keys:    []string{"user_id"},
	}, [][]any{{"u1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY staging rows for users")
	assert.NoError(t, mock.ExpectationsWereMet())
}
