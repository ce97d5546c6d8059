package db

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mobility-cli/internal/model"
)

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "mobility"`)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, table := range sinkTables {
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "mobility"."` + table + `"`)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, EnsureSchema(context.Background(), mock, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE SCHEMA").WillReturnError(fmt.Errorf("permission denied"))

	err = EnsureSchema(context.Background(), mock, "warehouse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema warehouse")
}

func TestCopyDataset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	ds := &model.Dataset{
		Users:     []model.UserProfile{{UserID: "u1", CreatedAt: ts}, {UserID: "u2", CreatedAt: ts}},
		Migration: []model.MigrationEvent{{UserID: "u1", Timestamp: ts, DistanceKm: 120}},
		Mobility:  []model.MobilityTrip{{UserID: "u2", Timestamp: ts, TripID: "t1"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"stage_users"}, userColumns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("dataset_version", "user_id")`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "mobility"."usage"`)).WithArgs("v1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "mobility"."migration"`)).WithArgs("v1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"mobility", "migration"}, migrationColumns).WillReturnResult(1)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "mobility"."mobility"`)).WithArgs("v1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"mobility", "mobility"}, mobilityColumns).WillReturnResult(1)

	counts, err := CopyDataset(context.Background(), mock, "", "v1", ds)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"users": 2, "usage": 0, "migration": 1, "mobility": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyDataset_Nil(t *testing.T) {
	_, err := CopyDataset(context.Background(), nil, "", "v1", nil)
	assert.Error(t, err)
}

func TestRowsMatchColumns(t *testing.T) {
	ds := &model.Dataset{
		Users:     make([]model.UserProfile, 1),
		Usage:     make([]model.UsageObservation, 1),
		Migration: make([]model.MigrationEvent, 1),
		Mobility:  make([]model.MobilityTrip, 1),
	}
	assert.Len(t, userRows("v", ds.Users)[0], len(userColumns))
	assert.Len(t, usageRows("v", ds.Usage)[0], len(usageColumns))
	assert.Len(t, migrationRows("v", ds.Migration)[0], len(migrationColumns))
	assert.Len(t, mobilityRows("v", ds.Mobility)[0], len(mobilityColumns))
}
