package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
)

func TestSnapshotStoreSaveUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)

	records := []review.Record{{
		Reviewer:   "Ann",
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Body:       "great",
		Link:       "https://x/r/1",
	}}
	mock.ExpectExec("INSERT INTO review_snapshots").
		WithArgs("acme", pgxmock.AnyArg(), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), "acme", records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreLoad(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "snaps")
	require.NoError(t, err)

	rows := mock.NewRows([]string{"records"}).
		AddRow([]byte(`[{"reviewer":"Ann","date":"2024-06-01","text":"great","link":"https://x/r/1"}]`))
	mock.ExpectQuery("SELECT records FROM snaps").WithArgs("acme").WillReturnRows(rows)

	got, err := store.Load(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Ann", got[0].Reviewer)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreLoadMissingIsEmpty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT records FROM review_snapshots").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	got, err := store.Load(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, got)
	require.NotNil(t, got)
}

func TestSnapshotStoreLoadError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT records FROM review_snapshots").WithArgs("acme").WillReturnError(boom)

	_, err = store.Load(context.Background(), "acme")
	require.ErrorIs(t, err, boom)
}

func TestSnapshotStoreLatest(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id FROM review_snapshots").
		WithArgs(`acme\_reviews%`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("acme_reviews_2024"))
	id, ok, err := store.Latest(context.Background(), "acme_reviews")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "acme_reviews_2024", id)

	mock.ExpectQuery("SELECT id FROM review_snapshots").
		WithArgs("zzz%").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err = store.Latest(context.Background(), "zzz")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreRejectsBadInput(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSnapshotStore(mock, "bad-name;")
	require.Error(t, err)
	_, err = NewSnapshotStore(nil, "")
	require.Error(t, err)

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), "../escape", nil))
}

func TestSnapshotStoreEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS review_snapshots").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
