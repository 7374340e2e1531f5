package counter

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Next(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for want := int64(1); want <= 3; want++ {
		got, err := m.Next(ctx, "app")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := m.Next(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	m.Seed("app", 41)
	got, err := m.Next(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = m.Next(ctx, "")
	assert.Error(t, err)
}

func TestMemory_ConcurrentNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const n = 100
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Next(ctx, "app")
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for v := range results {
		assert.False(t, seen[v], "duplicate number %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Next(ctx, "app")
	assert.ErrorIs(t, err, context.Canceled)
}

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgres(sqlx.NewDb(db, "postgres"), logger), mock
}

func TestPostgres_Next(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_executions")).
		WithArgs("identity-server-rs").
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(42))

	n, err := store.Next(context.Background(), "identity-server-rs")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_NextError(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_executions")).
		WithArgs("app").
		WillReturnError(assert.AnError)

	_, err := store.Next(context.Background(), "app")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPostgres_EnsureSchema(t *testing.T) {
	store, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS job_executions")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "litejob"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=litejob sslmode=disable", cfg.DSN())
}
