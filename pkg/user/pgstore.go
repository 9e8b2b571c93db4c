package user

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed roster.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the users table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         BIGINT PRIMARY KEY,
			full_name  TEXT NOT NULL,
			role       TEXT,
			handle     TEXT,
			directions TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS users_directions_idx ON users USING GIN(directions)`)
	return err
}

// Upsert creates the user or replaces its name, role, handle and directions.
func (s *PgStore) Upsert(ctx context.Context, r Record) error {
	now := time.Now().Truncate(time.Microsecond)
	dirs := r.Directions
	if dirs == nil {
		dirs = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, full_name, role, handle, directions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			handle = EXCLUDED.handle,
			directions = EXCLUDED.directions`,
		r.User.ID, r.User.FullName, nilIfEmpty(r.User.Role), nilIfEmpty(r.User.Handle), dirs, now)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", r.User.ID, err)
	}
	return nil
}

// Remove deletes a user from the roster.
func (s *PgStore) Remove(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove user %d: %w", id, err)
	}
	return nil
}

// List returns every stored user in creation order.
func (s *PgStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, full_name, role, handle, directions FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var role, handle *string
		if err := rows.Scan(&r.User.ID, &r.User.FullName, &role, &handle, &r.Directions); err != nil {
			return nil, err
		}
		if role != nil {
			r.User.Role = *role
		}
		if handle != nil {
			r.User.Handle = *handle
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
