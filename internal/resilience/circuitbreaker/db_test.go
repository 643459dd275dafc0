package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDBCircuitBreaker(db), mock
}

// fastTripConfig trips after 5 consecutive failures with a short open
// window so tests do not wait out the production timeout.
func fastTripConfig(timeout time.Duration) Config {
	return Config{
		Name:             "queue-db",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          timeout,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

func TestNewDBCircuitBreaker(t *testing.T) {
	dcb, _ := newMockDB(t)

	require.NotNil(t, dcb.cb)
	require.NotNil(t, dcb.db)
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
	assert.False(t, dcb.IsOpen())
}

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	dcb, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "status"}).AddRow(1, "pending")
	mock.ExpectQuery("SELECT (.+) FROM queue_items").WillReturnRows(rows)

	result, err := dcb.QueryContext(context.Background(),
		"SELECT id, status FROM queue_items WHERE user_id = $1", "user-1")
	require.NoError(t, err)
	defer func() { _ = result.Close() }()

	require.True(t, result.Next())
	var id int
	var status string
	require.NoError(t, result.Scan(&id, &status))
	assert.Equal(t, 1, id)
	assert.Equal(t, "pending", status)

	assert.Equal(t, gobreaker.StateClosed, dcb.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_QueryContext_SingleFailureStaysClosed(t *testing.T) {
	dcb, mock := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM queue_items").
		WillReturnError(errors.New("connection refused"))

	_, err := dcb.QueryContext(context.Background(), "SELECT id FROM queue_items")
	require.Error(t, err)
	assert.NotEqual(t, gobreaker.StateOpen, dcb.State(),
		"one failed query must not open the circuit")
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	dcb, mock := newMockDB(t)

	mock.ExpectExec("UPDATE queue_items SET status").
		WithArgs("claimed", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := dcb.ExecContext(context.Background(),
		"UPDATE queue_items SET status = $1 WHERE id = $2", "claimed", 1)
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dcb := NewDBCircuitBreakerWithConfig(db, fastTripConfig(100*time.Millisecond))

	dbErr := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(dbErr)
	}
	for i := 0; i < 5; i++ {
		_, err := dcb.QueryContext(context.Background(), "SELECT id FROM queue_items")
		require.Error(t, err, "attempt %d", i+1)
	}

	require.True(t, dcb.IsOpen(), "5 consecutive failures must trip the circuit")

	// The open circuit answers without touching the database; no mock
	// expectation is consumed.
	_, err = dcb.QueryContext(context.Background(), "SELECT id FROM queue_items")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	dcb := NewDBCircuitBreakerWithConfig(db, fastTripConfig(50*time.Millisecond))

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(errors.New("connection refused"))
	}
	for i := 0; i < 5; i++ {
		_, _ = dcb.QueryContext(context.Background(), "SELECT id FROM queue_items")
	}
	require.True(t, dcb.IsOpen())

	time.Sleep(100 * time.Millisecond)

	mock.ExpectQuery("SELECT (.+)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	result, err := dcb.QueryContext(context.Background(), "SELECT id FROM queue_items")
	require.NoError(t, err, "half-open probe should reach the database")
	_ = result.Close()
}

func TestDBCircuitBreaker_QueryRowContext(t *testing.T) {
	dcb, mock := newMockDB(t)

	mock.ExpectQuery("SELECT (.+) FROM queue_items WHERE id = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(1, "completed"))

	row := dcb.QueryRowContext(context.Background(),
		"SELECT id, status FROM queue_items WHERE id = ?", 1)

	var id int
	var status string
	require.NoError(t, row.Scan(&id, &status))
	assert.Equal(t, 1, id)
	assert.Equal(t, "completed", status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_DB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dcb := NewDBCircuitBreaker(db)
	assert.Same(t, db, dcb.DB())
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	assert.Equal(t, "database", cfg.Name)
	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 1.0, cfg.FailureThreshold, "only total failure opens the database breaker")
}
