package activity

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLog is an in-memory Log. It is the default when no database is
// configured.
type MemLog struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// NewMemLog creates an empty MemLog.
func NewMemLog() *MemLog {
	return &MemLog{now: time.Now}
}

// Append implements Log.
func (l *MemLog) Append(_ context.Context, e Entry) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := ""
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].Hash
	}
	if err := seal(&e, prev, l.now()); err != nil {
		return nil, err
	}
	l.entries = append(l.entries, e)
	return &e, nil
}

// ByTask implements Log.
func (l *MemLog) ByTask(_ context.Context, taskID int64) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Recent implements Log.
func (l *MemLog) Recent(_ context.Context, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

// VerifyChain implements Log.
func (l *MemLog) VerifyChain(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return verify(l.entries)
}

// seal assigns identity and chain hashes to a new entry.
func seal(e *Entry, prevHash string, now time.Time) error {
	e.ID = uuid.Must(uuid.NewV7()).String()
	e.Timestamp = now.Truncate(time.Microsecond)
	e.PrevHash = prevHash
	if e.Related == nil {
		e.Related = []int64{}
	}
	content, err := contentJSON(e)
	if err != nil {
		return err
	}
	e.Hash = computeHash(prevHash, e.ID, e.TaskID, e.ActorID, e.Timestamp, content)
	return nil
}

func verify(entries []Entry) error {
	prevHash := ""
	for i, e := range entries {
		if e.PrevHash != prevHash {
			return fmt.Errorf("entry %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
		}
		content, err := contentJSON(&e)
		if err != nil {
			return err
		}
		if want := computeHash(prevHash, e.ID, e.TaskID, e.ActorID, e.Timestamp, content); e.Hash != want {
			return fmt.Errorf("entry %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, want)
		}
		prevHash = e.Hash
	}
	return nil
}

func contentJSON(e *Entry) ([]byte, error) {
	related := e.Related
	if related == nil {
		related = []int64{}
	}
	b, err := json.Marshal(map[string]any{
		"description":   e.Description,
		"status_change": e.StatusChange,
		"related":       related,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	return b, nil
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id string, taskID, actorID int64, timestamp time.Time, content []byte) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d|%s", prevHash, id, taskID, actorID, timestamp.UnixNano(), string(content))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
