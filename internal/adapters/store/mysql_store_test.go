package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/mikey/email-assistant/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockMySQLStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS decisions")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS ai_labels")).WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := newSQLStore(sqlx.NewDb(db, "mysql"), mysqlDialect, zap.NewNop(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return s, mock
}

func TestMySQLStorePut(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	r := sampleRecord("m1", time.Unix(2000000000, 0))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO decisions")).
		WithArgs("m1", "boss@work.example", "Quarterly plan", sqlmock.AnyArg(), r.RecordedAt.Unix(), int64(2000000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Put(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreGet(t *testing.T) {
	s, mock := newMockMySQLStore(t)
	columns := []string{"email_id", "from_addr", "subject", "decision", "recorded_at", "expires_at"}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email_id, from_addr, subject, decision, recorded_at, expires_at")).
		WithArgs("m1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("m1", "a@x.example", "Hi", `{"labels":["Work"],"action":"delete","source":"rule","action_source":"rule"}`, int64(1700000000), int64(0)))

	got, err := s.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Work"}, got.Labels)
	assert.Equal(t, core.ActionDelete, got.Action)
	assert.Equal(t, core.SourceRule, got.ActionSource)
	assert.True(t, got.ExpiresAt.IsZero())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email_id")).
		WithArgs("m2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = s.Get(context.Background(), "m2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreRememberLabels(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM ai_labels")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Travel"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO ai_labels")).
		WithArgs("Finance", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.RememberLabels(context.Background(), []string{"travel", "Finance", "finance"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStoreCleanup(t *testing.T) {
	s, mock := newMockMySQLStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM decisions")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, s.Cleanup(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
