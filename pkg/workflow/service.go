// Package workflow is the boundary between the chat front end and the task
// core. It checks who may do what, drives the status engine, records
// activity and fans out notifications once a change is committed.
package workflow

import (
	"context"
	"log"
	"sync"
	"time"

	"tbot/pkg/activity"
	"tbot/pkg/notify"
	"tbot/pkg/task"
	"tbot/pkg/user"
)

// Service serializes every action behind one mutex, so resolving a task,
// mutating it and computing recipients is atomic with respect to other
// actions. Notifications are sent after the mutex is released.
type Service struct {
	mu       sync.Mutex
	tasks    *task.Store
	users    *user.Directory
	activity activity.Log
	sender   notify.Sender
	persist  task.Persister
	projects map[string]string
	adminID  int64
	loc      *time.Location
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithActivityLog replaces the in-memory activity log.
func WithActivityLog(l activity.Log) Option {
	return func(s *Service) { s.activity = l }
}

// WithSender sets the notification transport.
func WithSender(sender notify.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// WithPersister mirrors every change to durable storage. Persistence
// failures are logged; the in-memory state stays authoritative.
func WithPersister(p task.Persister) Option {
	return func(s *Service) { s.persist = p }
}

// WithAdmin sets the administrator, who may browse every task.
func WithAdmin(id int64) Option {
	return func(s *Service) { s.adminID = id }
}

// WithProjects restricts project tags to the given codes.
func WithProjects(projects map[string]string) Option {
	return func(s *Service) { s.projects = projects }
}

// WithLocation sets the zone due dates are typed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock replaces the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over an existing store and roster.
func New(tasks *task.Store, users *user.Directory, opts ...Option) *Service {
	s := &Service{
		tasks:    tasks,
		users:    users,
		activity: activity.NewMemLog(),
		sender:   notify.Discard,
		loc:      user.Moscow,
		now:      tasks.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAdmin reports whether id is the configured administrator.
func (s *Service) IsAdmin(id int64) bool {
	return s.adminID != 0 && id == s.adminID
}

// Users exposes the roster.
func (s *Service) Users() *user.Directory {
	return s.users
}

// Location is the zone due dates are typed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Count returns how many tasks exist.
func (s *Service) Count() int {
	return s.tasks.Count()
}

// Projects returns the configured project tags.
func (s *Service) Projects() map[string]string {
	return s.projects
}

// change is what an action produced, applied after the mutation succeeded.
type change struct {
	action  string
	entry   activity.Entry
	msgs    []notify.Message
	deleted bool
}

type mutation func(t *task.Task, now time.Time) (*change, error)

func (s *Service) authorize(actorID int64) error {
	if s.IsAdmin(actorID) || s.users.Contains(actorID) {
		return nil
	}
	log.Printf("workflow: rejected action from unknown user %d", actorID)
	return forbidden("user %d is not on the roster", actorID)
}

// apply runs fn on the task under the service mutex, then sends whatever
// notifications it produced. Once fn succeeds the change is committed:
// recording, persisting and sending ignore cancellation of ctx.
func (s *Service) apply(ctx context.Context, taskID, actorID int64, fn mutation) (*task.Task, error) {
	out, c, err := s.mutate(ctx, taskID, actorID, fn)
	if err != nil {
		return nil, err
	}
	notify.Fanout(context.WithoutCancel(ctx), s.sender, c.msgs)
	return out, nil
}

func (s *Service) mutate(ctx context.Context, taskID, actorID int64, fn mutation) (*task.Task, *change, error) {
	if err := s.authorize(actorID); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks.Get(taskID)
	if t == nil {
		return nil, nil, notFound("task %d not found", taskID)
	}
	now := s.now()
	t.Refresh(now)

	c, err := fn(t, now)
	if err != nil {
		return nil, nil, err
	}
	if !c.deleted {
		t.RecordAction(actorID, c.action, now)
	}
	committed := context.WithoutCancel(ctx)
	s.record(committed, t, actorID, c)
	s.save(committed, t, c.deleted)
	return t.Clone(), c, nil
}

func (s *Service) record(ctx context.Context, t *task.Task, actorID int64, c *change) {
	if c.entry.Description == "" {
		return
	}
	c.entry.TaskID = t.ID
	c.entry.ActorID = actorID
	if _, err := s.activity.Append(ctx, c.entry); err != nil {
		log.Printf("workflow: append activity for task %d: %v", t.ID, err)
	}
}

func (s *Service) save(ctx context.Context, t *task.Task, deleted bool) {
	if s.persist == nil {
		return
	}
	var err error
	if deleted {
		err = s.persist.Delete(ctx, t.ID)
	} else {
		err = s.persist.Save(ctx, t, s.tasks.LastID())
	}
	if err != nil {
		log.Printf("workflow: persist task %d: %v", t.ID, err)
	}
}
