package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/furlong/internal/domain/model"
)

var (
	ratingCols  = []string{"horse_id", "rating", "confidence", "races_considered", "last_updated"}
	historyCols = []string{"race_id", "rating", "confidence", "recorded_at"}
	stamp       = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestPostgresStore_Migrate(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ratings").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rating_history").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create(t *testing.T) {
	t.Run("inserts the record", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO ratings").
			WithArgs("h1", 82.4, 30.0, 0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		err := store.Create(context.Background(), model.RatingRecord{HorseID: "h1", Rating: 82.4, Confidence: 30})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps unique violations to ErrAlreadyExists", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO ratings").
			WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
		mock.ExpectRollback()

		err := store.Create(context.Background(), model.RatingRecord{HorseID: "h1", Rating: 60})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Get(t *testing.T) {
	t.Run("loads record and ordered history", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT horse_id, rating, confidence").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(ratingCols).AddRow("h1", 72.0, 46.6, 1, stamp))
		mock.ExpectQuery("FROM rating_history").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(historyCols).AddRow("r1", 70.0, 40.0, stamp))
		mock.ExpectCommit()

		rec, err := store.Get(context.Background(), "h1")
		require.NoError(t, err)
		assert.Equal(t, 72.0, rec.Rating)
		assert.Equal(t, 1, rec.RacesConsidered)
		require.Len(t, rec.History, 1)
		assert.Equal(t, "r1", rec.History[0].RaceID)
		assert.True(t, rec.HasRace("r1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for unknown horses", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT horse_id, rating, confidence").WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows(ratingCols))
		mock.ExpectRollback()

		_, err := store.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Update(t *testing.T) {
	apply := func(cur model.RatingRecord) (model.RatingRecord, bool, error) {
		if cur.HasRace("r2") {
			return cur, false, nil
		}
		cur.History = append(cur.History, model.HistoryEntry{Rating: cur.Rating, Confidence: cur.Confidence, RaceID: "r2", RecordedAt: stamp})
		cur.Rating = 75
		cur.Confidence = 50
		cur.RacesConsidered++
		cur.LastUpdated = stamp
		return cur, true, nil
	}

	t.Run("locks the row and appends only new history", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(ratingCols).AddRow("h1", 72.0, 46.0, 1, stamp))
		mock.ExpectQuery("FROM rating_history").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(historyCols).AddRow("r1", 70.0, 40.0, stamp))
		mock.ExpectExec("UPDATE ratings").
			WithArgs("h1", 75.0, 50.0, 2, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO rating_history").
			WithArgs("h1", 1, "r2", 72.0, 46.0, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		rec, changed, err := store.Update(context.Background(), "h1", apply)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 75.0, rec.Rating)
		assert.Len(t, rec.History, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when nothing changed", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(ratingCols).AddRow("h1", 75.0, 50.0, 2, stamp))
		mock.ExpectQuery("FROM rating_history").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(historyCols).
				AddRow("r1", 70.0, 40.0, stamp).
				AddRow("r2", 72.0, 46.0, stamp))
		mock.ExpectRollback()

		rec, changed, err := store.Update(context.Background(), "h1", apply)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, 75.0, rec.Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the callback fails", func(t *testing.T) {
		mock, store := newMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(ratingCols).AddRow("h1", 75.0, 50.0, 2, stamp))
		mock.ExpectQuery("FROM rating_history").WithArgs("h1").
			WillReturnRows(pgxmock.NewRows(historyCols))
		mock.ExpectRollback()

		_, _, err := store.Update(context.Background(), "h1", func(model.RatingRecord) (model.RatingRecord, bool, error) {
			return model.RatingRecord{}, false, boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_SnapshotAndCount(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery("SELECT horse_id, rating, confidence").
		WillReturnRows(pgxmock.NewRows(ratingCols).
			AddRow("a", 90.0, 60.0, 4, stamp).
			AddRow("b", 65.0, 30.0, 1, stamp))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].HorseID)
	assert.Nil(t, snap[0].History)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
