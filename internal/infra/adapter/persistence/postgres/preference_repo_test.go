package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infinite-feed/internal/domain/entity"
	pg "infinite-feed/internal/infra/adapter/persistence/postgres"
)

func TestPreferenceRepo_Get_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewPreferenceRepo(db)

	updatedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"user_id", "embedding", "dimension", "updated_at"}).
		AddRow("user-1", "[0.1,0.2,0.3]", 3, updatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences")).
		WithArgs("user-1").
		WillReturnRows(rows)

	vector, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", vector.UserID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector.Embedding)
	assert.Equal(t, 3, vector.Dimension)
	assert.Equal(t, updatedAt, vector.UpdatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewPreferenceRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_preferences")).
		WithArgs("user-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "embedding", "dimension", "updated_at"}))

	vector, err := repo.Get(context.Background(), "user-unknown")
	assert.Nil(t, vector)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepo_Upsert_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewPreferenceRepo(db)
	vector := entity.NewPreferenceVector("user-1", []float32{0.1, 0.2, 0.3})

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id)")).
		WithArgs("user-1", pgvector.NewVector(vector.Embedding), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Upsert(context.Background(), vector)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPreferenceRepo_Upsert_ValidationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewPreferenceRepo(db)

	err = repo.Upsert(context.Background(), entity.NewPreferenceVector("", []float32{0.1}))
	assert.ErrorIs(t, err, entity.ErrEmptyUserID)

	err = repo.Upsert(context.Background(), nil)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
