package quota

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockCounter(t *testing.T) (*PostgresCounter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresCounter(db, nil), mock
}

func TestPostgresCounter_EnsureSchema(t *testing.T) {
	c, mock := newMockCounter(t)
	mock.ExpectExec(createTableSQL).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_Increment(t *testing.T) {
	c, mock := newMockCounter(t)
	mock.ExpectQuery(incrementSQL).
		WithArgs("2026-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(151))

	n, err := c.Increment(context.Background(), "2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(151), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounter_CountMissingDay(t *testing.T) {
	c, mock := newMockCounter(t)
	mock.ExpectQuery(countSQL).
		WithArgs("2026-05-01").
		WillReturnError(sql.ErrNoRows)

	n, err := c.Count(context.Background(), "2026-05-01")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPostgresCounter_GateExhausted(t *testing.T) {
	c, mock := newMockCounter(t)
	mock.ExpectQuery(countSQL).
		WithArgs("2026-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(150))

	g := NewGate(c, 150)
	g.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	exhausted, err := g.Exhausted(context.Background())
	require.NoError(t, err)
	assert.True(t, exhausted)
}

func TestPostgresCounter_IncrementError(t *testing.T) {
	c, mock := newMockCounter(t)
	mock.ExpectQuery(incrementSQL).
		WithArgs("2026-05-01").
		WillReturnError(sql.ErrConnDone)

	_, err := c.Increment(context.Background(), "2026-05-01")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
