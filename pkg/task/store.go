package task

import (
	"sort"
	"sync"
	"time"
)

// Store owns every task in the process. It hands out live references;
// callers that mutate tasks must serialize those mutations themselves.
type Store struct {
	mu     sync.RWMutex
	tasks  map[int64]*Task
	lastID int64
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[int64]*Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Create assigns the next identifier, seeds every participant as new, fills
// in the due date from the priority when none is given and evaluates the
// overdue overlay once.
func (s *Store) Create(d Draft) *Task {
	now := s.now().Truncate(time.Microsecond)
	prio := d.Priority
	if prio == "" {
		prio = PriorityMedium
	}
	due := d.DueDate
	if due == nil {
		auto := now.AddDate(0, 0, prio.OffsetDays())
		due = &auto
	}

	t := &Task{
		Title:         d.Title,
		Description:   d.Description,
		AuthorID:      d.AuthorID,
		CreatedAt:     now,
		DueDate:       due,
		Priority:      prio,
		Status:        StatusNew,
		Project:       d.Project,
		Direction:     d.Direction,
		ResponsibleID: d.ResponsibleID,
		Workgroup:     dedupe(d.Workgroup),
		Private:       d.Private,
		Statuses:      make(map[int64]Status),
		Pending:       make(map[int64]bool),
	}
	for _, id := range t.Participants() {
		t.Statuses[id] = StatusNew
	}

	s.mu.Lock()
	s.lastID++
	t.ID = s.lastID
	s.tasks[t.ID] = t
	s.mu.Unlock()

	t.Refresh(now)
	return t
}

// Get returns the task or nil.
func (s *Store) Get(id int64) *Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[id]
}

// Delete removes a task. It reports false when the task was absent.
func (s *Store) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// ListAll returns every task ordered by identifier.
func (s *Store) ListAll() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListInvolved refreshes every task, then returns those the user takes part in.
func (s *Store) ListInvolved(userID int64) []*Task {
	s.RefreshAll(s.now())
	var out []*Task
	for _, t := range s.ListAll() {
		if t.IsInvolved(userID) {
			out = append(out, t)
		}
	}
	return out
}

// ListVisible refreshes every task, then returns what the user may browse:
// public tasks and private ones they take part in. Admins see everything.
func (s *Store) ListVisible(userID int64, admin bool) []*Task {
	s.RefreshAll(s.now())
	var out []*Task
	for _, t := range s.ListAll() {
		if admin || !t.Private || t.IsInvolved(userID) {
			out = append(out, t)
		}
	}
	return out
}

// RefreshAll applies the overdue overlay to every task and returns the tasks
// that became overdue during this pass.
func (s *Store) RefreshAll(ref time.Time) []*Task {
	var turned []*Task
	for _, t := range s.ListAll() {
		was := t.Status
		t.Refresh(ref)
		if was != StatusOverdue && t.Status == StatusOverdue {
			turned = append(turned, t)
		}
	}
	return turned
}

// Restore loads previously persisted tasks. The identifier counter never
// moves backwards, so ids handed out before a restart are not reissued.
func (s *Store) Restore(tasks []*Task, lastID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t.Statuses == nil {
			t.Statuses = make(map[int64]Status)
		}
		if t.Pending == nil {
			t.Pending = make(map[int64]bool)
		}
		s.tasks[t.ID] = t
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	if lastID > s.lastID {
		s.lastID = lastID
	}
}

// LastID returns the most recently issued identifier.
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}

// Count returns how many tasks the store holds.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
