package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed Log with hash-chained integrity.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the activity table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS activity (
			id            TEXT PRIMARY KEY,
			task_id       BIGINT NOT NULL,
			actor_id      BIGINT NOT NULL,
			description   TEXT NOT NULL,
			status_change BOOLEAN NOT NULL DEFAULT FALSE,
			related       BIGINT[] NOT NULL DEFAULT '{}',
			timestamp     TIMESTAMPTZ NOT NULL,
			hash          TEXT NOT NULL,
			prev_hash     TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_task ON activity(task_id, timestamp)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_activity_timestamp_id ON activity(timestamp, id)`)
	return err
}

// Append implements Log. The previous hash is read under FOR UPDATE so
// concurrent writers extend one chain.
func (s *PgStore) Append(ctx context.Context, e Entry) (*Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevHash string
	err = tx.QueryRow(ctx, `SELECT hash FROM activity ORDER BY timestamp DESC, id DESC LIMIT 1 FOR UPDATE`).Scan(&prevHash)
	if err != nil {
		prevHash = ""
	}

	if err := seal(&e, prevHash, time.Now()); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO activity (id, task_id, actor_id, description, status_change, related, timestamp, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TaskID, e.ActorID, e.Description, e.StatusChange, e.Related, e.Timestamp, e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit activity: %w", err)
	}
	return &e, nil
}

// ByTask implements Log.
func (s *PgStore) ByTask(ctx context.Context, taskID int64) ([]Entry, error) {
	entries, err := s.scanMany(ctx, `
		SELECT id, task_id, actor_id, description, status_change, related, timestamp, hash, prev_hash
		FROM activity WHERE task_id = $1 ORDER BY timestamp ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("activity for task %d: %w", taskID, err)
	}
	return entries, nil
}

// Recent implements Log.
func (s *PgStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.scanMany(ctx, `
		SELECT id, task_id, actor_id, description, status_change, related, timestamp, hash, prev_hash
		FROM activity ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// VerifyChain walks the whole log chronologically and checks every link.
func (s *PgStore) VerifyChain(ctx context.Context) error {
	entries, err := s.scanMany(ctx, `
		SELECT id, task_id, actor_id, description, status_change, related, timestamp, hash, prev_hash
		FROM activity ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	return verify(entries)
}

func (s *PgStore) scanMany(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ActorID, &e.Description, &e.StatusChange, &e.Related, &e.Timestamp, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return entries, nil
}
