// Package activity is the per-task, hash-chained audit log and the rules
// for who may read which entries.
package activity

import (
	"context"
	"time"
)

// Entry is one line of a task's activity feed.
type Entry struct {
	ID           string    `json:"id"` // UUID v7 (time-ordered)
	TaskID       int64     `json:"task_id"`
	ActorID      int64     `json:"actor_id"`
	Description  string    `json:"description"`
	StatusChange bool      `json:"status_change"`
	Related      []int64   `json:"related,omitempty"` // participants the change concerns
	Timestamp    time.Time `json:"timestamp"`
	Hash         string    `json:"hash"`
	PrevHash     string    `json:"prev_hash"`
}

// Concerns reports whether id is among the related participants.
func (e *Entry) Concerns(id int64) bool {
	for _, r := range e.Related {
		if r == id {
			return true
		}
	}
	return false
}

// Visible decides whether viewer may read e on a task authored by authorID.
// The author reads everything. Anyone else reads their own entries and
// status changes naming them, except author changes naming several people.
func Visible(e *Entry, viewerID, authorID int64) bool {
	if viewerID == authorID {
		return true
	}
	if e.ActorID == viewerID {
		return true
	}
	if !e.StatusChange || !e.Concerns(viewerID) {
		return false
	}
	return !(e.ActorID == authorID && len(distinct(e.Related)) > 1)
}

// Filter keeps the entries viewer may read, preserving order.
func Filter(entries []Entry, viewerID, authorID int64) []Entry {
	var out []Entry
	for i := range entries {
		if Visible(&entries[i], viewerID, authorID) {
			out = append(out, entries[i])
		}
	}
	return out
}

// Log is the contract for activity persistence.
type Log interface {
	// Append stamps the entry with ID, timestamp and chain hashes and stores it.
	Append(ctx context.Context, e Entry) (*Entry, error)
	// ByTask returns a task's entries oldest first.
	ByTask(ctx context.Context, taskID int64) ([]Entry, error)
	// Recent returns the newest entries across all tasks, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	VerifyChain(ctx context.Context) error
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
