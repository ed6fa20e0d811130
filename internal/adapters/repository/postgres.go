package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/furlong/internal/domain/model"
	"github.com/okian/furlong/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// querier is the statement surface shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool creates a Postgres connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresStore implements Store on two tables: ratings holds the current
// state and rating_history the append-only history. Per-horse serialization
// comes from SELECT ... FOR UPDATE on the ratings row.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Create implements Store.Create.
func (s *PostgresStore) Create(ctx context.Context, rec model.RatingRecord) error {
	start := time.Now()
	defer func() { metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ratings (horse_id, rating, confidence, races_considered, last_updated)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.HorseID, rec.Rating, rec.Confidence, rec.RacesConsidered, rec.LastUpdated)
	if err != nil {
		rollback(ctx, tx)
		if isDuplicateKeyError(err) {
			metrics.RecordErrorByComponent("repository", "already_exists")
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	if err := insertHistory(ctx, tx, rec.HorseID, rec.History, 0); err != nil {
		rollback(ctx, tx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

// Get implements Store.Get.
func (s *PostgresStore) Get(ctx context.Context, horseID string) (model.RatingRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds())) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.RatingRecord{}, fmt.Errorf("begin get: %w", err)
	}
	rec, err := load(ctx, tx, horseID, lockShare)
	if err != nil {
		rollback(ctx, tx)
		return model.RatingRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.RatingRecord{}, fmt.Errorf("commit get: %w", err)
	}
	return rec, nil
}

// Update implements Store.Update inside one transaction. Only history
// entries appended by fn are inserted.
func (s *PostgresStore) Update(ctx context.Context, horseID string, fn UpdateFunc) (model.RatingRecord, bool, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.RatingRecord{}, false, fmt.Errorf("begin update: %w", err)
	}
	cur, err := load(ctx, tx, horseID, lockUpdate)
	if err != nil {
		rollback(ctx, tx)
		return model.RatingRecord{}, false, err
	}

	next, changed, err := fn(cur.Clone())
	if err != nil || !changed {
		rollback(ctx, tx)
		return cur, false, err
	}
	if len(next.History) < len(cur.History) {
		rollback(ctx, tx)
		return cur, false, fmt.Errorf("update %s: history is append-only", horseID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE ratings
		SET rating = $2, confidence = $3, races_considered = $4, last_updated = $5
		WHERE horse_id = $1
	`, horseID, next.Rating, next.Confidence, next.RacesConsidered, next.LastUpdated)
	if err != nil {
		rollback(ctx, tx)
		return cur, false, fmt.Errorf("update rating: %w", err)
	}
	if err := insertHistory(ctx, tx, horseID, next.History[len(cur.History):], len(cur.History)); err != nil {
		rollback(ctx, tx)
		return cur, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return cur, false, fmt.Errorf("commit update: %w", err)
	}
	return next, true, nil
}

// Snapshot implements Store.Snapshot.
func (s *PostgresStore) Snapshot(ctx context.Context) ([]model.RatingRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.Query(ctx, `
		SELECT horse_id, rating, confidence, races_considered, last_updated
		FROM ratings
		ORDER BY horse_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot ratings: %w", err)
	}
	defer rows.Close()

	var out []model.RatingRecord
	for rows.Next() {
		var rec model.RatingRecord
		if err := rows.Scan(&rec.HorseID, &rec.Rating, &rec.Confidence, &rec.RacesConsidered, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

// Count implements Store.Count.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM ratings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return n, nil
}

// Row lock clauses for load.
const (
	lockShare  = "FOR SHARE"
	lockUpdate = "FOR UPDATE"
)

// load reads the record and its history; lock keeps the ratings row stable
// until the surrounding transaction ends.
func load(ctx context.Context, q querier, horseID string, lock string) (model.RatingRecord, error) {
	query := `
		SELECT horse_id, rating, confidence, races_considered, last_updated
		FROM ratings
		WHERE horse_id = $1 ` + lock

	var rec model.RatingRecord
	err := q.QueryRow(ctx, query, horseID).
		Scan(&rec.HorseID, &rec.Rating, &rec.Confidence, &rec.RacesConsidered, &rec.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.RecordErrorByComponent("repository", "not_found")
			return model.RatingRecord{}, ErrNotFound
		}
		return model.RatingRecord{}, fmt.Errorf("get rating: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT race_id, rating, confidence, recorded_at
		FROM rating_history
		WHERE horse_id = $1
		ORDER BY seq ASC
	`, horseID)
	if err != nil {
		return model.RatingRecord{}, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	rec.History = []model.HistoryEntry{}
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.RaceID, &h.Rating, &h.Confidence, &h.RecordedAt); err != nil {
			return model.RatingRecord{}, fmt.Errorf("scan history: %w", err)
		}
		rec.History = append(rec.History, h)
	}
	if err := rows.Err(); err != nil {
		return model.RatingRecord{}, fmt.Errorf("iterate history: %w", err)
	}
	return rec, nil
}

func insertHistory(ctx context.Context, q querier, horseID string, entries []model.HistoryEntry, firstSeq int) error {
	for i, h := range entries {
		_, err := q.Exec(ctx, `
			INSERT INTO rating_history (horse_id, seq, race_id, rating, confidence, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, horseID, firstSeq+i, h.RaceID, h.Rating, h.Confidence, h.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert history %s/%s: %w", horseID, h.RaceID, err)
		}
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation
}
