package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Persister keeps a durable copy of the in-memory store.
type Persister interface {
	Save(ctx context.Context, t *Task, lastID int64) error
	Delete(ctx context.Context, id int64) error
	LoadAll(ctx context.Context) ([]*Task, int64, error)
	EnsureTable(ctx context.Context) error
}

// PgStore persists task snapshots to PostgreSQL. Each task is stored as one
// JSONB document next to a few columns useful for ad-hoc queries.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks and task_counter tables if they don't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id           BIGINT PRIMARY KEY,
			author_id    BIGINT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'new',
			body         JSONB NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_counter (
			name    TEXT PRIMARY KEY,
			last_id BIGINT NOT NULL
		)`)
	return err
}

// Save upserts the task snapshot and advances the identifier counter.
func (s *PgStore) Save(ctx context.Context, t *Task, lastID int64) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task %d: %w", t.ID, err)
	}
	now := time.Now().Truncate(time.Microsecond)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO tasks (id, author_id, status, body, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		t.ID, t.AuthorID, string(t.Status), string(body), now)
	if err != nil {
		return fmt.Errorf("save task %d: %w", t.ID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO task_counter (name, last_id) VALUES ('tasks', $1)
		ON CONFLICT (name) DO UPDATE SET last_id = GREATEST(task_counter.last_id, EXCLUDED.last_id)`,
		lastID)
	if err != nil {
		return fmt.Errorf("advance task counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit task %d: %w", t.ID, err)
	}
	return nil
}

// Delete removes the snapshot. The counter is left as is.
func (s *PgStore) Delete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// LoadAll returns every stored task plus the highest identifier ever issued.
func (s *PgStore) LoadAll(ctx context.Context) ([]*Task, int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, 0, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, 0, err
	}

	var lastID int64
	err = s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(last_id), 0) FROM task_counter WHERE name = 'tasks'`).Scan(&lastID)
	if err != nil {
		return nil, 0, fmt.Errorf("load task counter: %w", err)
	}
	return tasks, lastID, nil
}

func scanTaskRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var t Task
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
