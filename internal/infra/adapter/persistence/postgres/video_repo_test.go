package postgres_test

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infinite-feed/internal/domain/entity"
	pg "infinite-feed/internal/infra/adapter/persistence/postgres"
)

// passthroughConverter lets slice arguments reach the mock unmodified, the
// way the pgx driver accepts them for = ANY($1) parameters.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	return v, nil
}

func TestVideoRepo_Create_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	createdAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO videos")).
		WithArgs("video-1", "a cat opening a door", "https://cdn.example.com/video-1.mp4", 8).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	video := &entity.Video{
		ID:              "video-1",
		Prompt:          "a cat opening a door",
		SourceURL:       "https://cdn.example.com/video-1.mp4",
		DurationSeconds: 8,
	}

	err = repo.Create(context.Background(), video)
	assert.NoError(t, err)
	assert.Equal(t, createdAt, video.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepo_Create_ValidationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	err = repo.Create(context.Background(), &entity.Video{SourceURL: "https://cdn.example.com/v.mp4"})
	assert.ErrorIs(t, err, entity.ErrEmptyVideoID)

	err = repo.Create(context.Background(), nil)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepo_Get_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	rows := sqlmock.NewRows([]string{"id", "prompt", "source_url", "duration_seconds", "created_at"}).
		AddRow("video-1", "a cat opening a door", "https://cdn.example.com/video-1.mp4", 8, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM videos")).
		WithArgs("video-1").
		WillReturnRows(rows)

	video, err := repo.Get(context.Background(), "video-1")
	require.NoError(t, err)
	assert.Equal(t, "video-1", video.ID)
	assert.Equal(t, 8, video.DurationSeconds)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepo_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM videos")).
		WithArgs("video-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id", "prompt", "source_url", "duration_seconds", "created_at"}))

	video, err := repo.Get(context.Background(), "video-unknown")
	assert.Nil(t, video)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepo_GetBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthroughConverter{}))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	rows := sqlmock.NewRows([]string{"id", "prompt", "source_url", "duration_seconds", "created_at"}).
		AddRow("video-1", "a cat opening a door", "https://cdn.example.com/video-1.mp4", 8, time.Now()).
		AddRow("video-2", "a dog on a skateboard", "https://cdn.example.com/video-2.mp4", 8, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WithArgs([]string{"video-1", "video-2", "video-missing"}).
		WillReturnRows(rows)

	videos, err := repo.GetBatch(context.Background(), []string{"video-1", "video-2", "video-missing"})
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Contains(t, videos, "video-1")
	assert.Contains(t, videos, "video-2")
	assert.NotContains(t, videos, "video-missing")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVideoRepo_GetBatch_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.NewVideoRepo(db)

	videos, err := repo.GetBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, videos)

	assert.NoError(t, mock.ExpectationsWereMet())
}
