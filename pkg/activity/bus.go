package activity

import (
	"context"
	"sync"
	"sync/atomic"
)

// Match decides whether a subscriber receives an entry. It runs inside
// Append, on the appending goroutine, so it must not call back into
// whatever is appending.
type Match func(e *Entry) bool

// All matches every entry.
func All(*Entry) bool { return true }

type subscriber struct {
	ch    chan *Entry
	match Match
}

// Bus wraps a Log with in-process fan-out. Each appended entry is offered
// to the subscribers whose Match accepts it.
type Bus struct {
	Log
	mu      sync.RWMutex
	subs    map[<-chan *Entry]*subscriber
	dropped atomic.Int64
}

// NewBus creates a Bus wrapping the given log.
func NewBus(log Log) *Bus {
	return &Bus{
		Log:  log,
		subs: make(map[<-chan *Entry]*subscriber),
	}
}

// Append delegates to the underlying log, then fans out to matching
// subscribers. A subscriber that is behind loses the entry.
func (b *Bus) Append(ctx context.Context, e Entry) (*Entry, error) {
	stored, err := b.Log.Append(ctx, e)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	for _, s := range b.subs {
		if !s.match(stored) {
			continue
		}
		select {
		case s.ch <- stored:
		default:
			b.dropped.Add(1)
		}
	}
	b.mu.RUnlock()

	return stored, nil
}

// Subscribe returns a buffered channel receiving the new entries match
// accepts. A nil match receives everything.
func (b *Bus) Subscribe(match Match) <-chan *Entry {
	if match == nil {
		match = All
	}
	s := &subscriber{ch: make(chan *Entry, 64), match: match}
	b.mu.Lock()
	b.subs[s.ch] = s
	b.mu.Unlock()
	return s.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan *Entry) {
	b.mu.Lock()
	s, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(s.ch)
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts entries lost to slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
