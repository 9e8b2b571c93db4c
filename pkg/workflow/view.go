package workflow

import (
	"context"
	"fmt"

	"tbot/pkg/activity"
	"tbot/pkg/notify"
	"tbot/pkg/task"
)

// Affordances lists what a viewer can do with a task right now.
type Affordances struct {
	Take          bool    `json:"take"`
	Pause         bool    `json:"pause"`
	Done          bool    `json:"done"`
	Complete      bool    `json:"complete"`
	Reopen        bool    `json:"reopen"`
	Postpone      bool    `json:"postpone"`
	Delete        bool    `json:"delete"`
	Confirm       []int64 `json:"confirm,omitempty"`
	RemindTargets []int64 `json:"remind_targets,omitempty"`
}

// View is a task as one particular user sees it.
type View struct {
	Task           *task.Task       `json:"task"`
	PersonalStatus task.Status      `json:"personal_status"`
	Pending        []int64          `json:"pending,omitempty"`
	Actions        Affordances      `json:"actions"`
	Activity       []activity.Entry `json:"activity,omitempty"`
}

// Scope selects which tasks List returns.
type Scope string

const (
	ScopeInvolved Scope = "involved"
	ScopeAll      Scope = "all"
)

// Summary counts a user's tasks by aggregate status.
type Summary struct {
	Total     int `json:"total"`
	New       int `json:"new"`
	Active    int `json:"active"`
	Paused    int `json:"paused"`
	InReview  int `json:"in_review"`
	Overdue   int `json:"overdue"`
	Completed int `json:"completed"`
}

// Get returns the task with its filtered activity feed. Private tasks are
// reported as missing to outsiders.
func (s *Service) Get(ctx context.Context, taskID, viewerID int64) (*View, error) {
	if err := s.authorize(viewerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks.Get(taskID)
	if t == nil || !s.canSee(t, viewerID) {
		return nil, notFound("task %d not found", taskID)
	}
	t.Refresh(s.now())

	entries, err := s.activity.ByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("activity for task %d: %w", taskID, err)
	}
	v := s.view(t, viewerID)
	v.Activity = activity.Filter(entries, viewerID, t.AuthorID)
	return v, nil
}

// Activity returns the part of the task's feed the viewer may read.
func (s *Service) Activity(ctx context.Context, taskID, viewerID int64) ([]activity.Entry, error) {
	v, err := s.Get(ctx, taskID, viewerID)
	if err != nil {
		return nil, err
	}
	return v.Activity, nil
}

// Audience returns the bus filter for viewer's live feed. Every append
// happens inside an action while the service mutex is held, so the filter
// reads the store without locking. Entries of deleted tasks are not pushed.
func (s *Service) Audience(viewerID int64) activity.Match {
	if !s.IsAdmin(viewerID) && !s.users.Contains(viewerID) {
		return func(*activity.Entry) bool { return false }
	}
	return func(e *activity.Entry) bool {
		t := s.tasks.Get(e.TaskID)
		if t == nil || !s.canSee(t, viewerID) {
			return false
		}
		return activity.Visible(e, viewerID, t.AuthorID)
	}
}

// List returns the viewer's tasks, optionally narrowed to one aggregate status.
func (s *Service) List(ctx context.Context, viewerID int64, scope Scope, status task.Status) ([]*View, error) {
	if err := s.authorize(viewerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*task.Task
	switch scope {
	case ScopeInvolved, "":
		tasks = s.tasks.ListInvolved(viewerID)
	case ScopeAll:
		tasks = s.tasks.ListVisible(viewerID, s.IsAdmin(viewerID))
	default:
		return nil, validation("unknown scope %q", scope)
	}

	views := make([]*View, 0, len(tasks))
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		views = append(views, s.view(t, viewerID))
	}
	return views, nil
}

// Overview counts the viewer's tasks for the main menu.
func (s *Service) Overview(ctx context.Context, viewerID int64) (*Summary, error) {
	views, err := s.List(ctx, viewerID, ScopeInvolved, "")
	if err != nil {
		return nil, err
	}
	sum := &Summary{Total: len(views)}
	for _, v := range views {
		switch v.Task.Status {
		case task.StatusNew:
			sum.New++
		case task.StatusActive:
			sum.Active++
		case task.StatusPaused:
			sum.Paused++
		case task.StatusInReview:
			sum.InReview++
		case task.StatusOverdue:
			sum.Overdue++
		case task.StatusCompleted:
			sum.Completed++
		}
	}
	return sum, nil
}

func (s *Service) canSee(t *task.Task, viewerID int64) bool {
	return !t.Private || t.IsInvolved(viewerID) || s.IsAdmin(viewerID)
}

func (s *Service) view(t *task.Task, viewerID int64) *View {
	return &View{
		Task:           t.Clone(),
		PersonalStatus: t.PersonalStatus(viewerID),
		Pending:        t.PendingIDs(),
		Actions:        affordances(t, viewerID),
	}
}

func affordances(t *task.Task, viewerID int64) Affordances {
	var a Affordances
	isAuthor := viewerID == t.AuthorID
	if t.Status == task.StatusCompleted {
		a.Reopen = isAuthor
		a.Delete = isAuthor
		return a
	}
	involved := t.IsInvolved(viewerID)
	var own task.Status
	if involved {
		own = t.ParticipantStatus(viewerID)
	}

	if involved && notify.ShouldShowTakeButton(t.AuthorID, t.ResponsibleID, viewerID) {
		if isAuthor {
			a.Take = t.ResponsibleID != 0 && canStart(t, t.ResponsibleID) == nil
		} else {
			a.Take = canStart(t, viewerID) == nil
		}
	}
	a.Pause = involved && !isAuthor && own == task.StatusActive
	a.Done = involved && (isAuthor || (!t.IsPending(viewerID) && own != task.StatusCompleted))
	a.Complete = isAuthor
	a.Postpone = notify.CanManage(t, viewerID)
	a.Delete = isAuthor
	a.RemindTargets = notify.AllowedReminderTargets(t, viewerID).Slice()

	isResponsible := t.ResponsibleID != 0 && viewerID == t.ResponsibleID
	for _, id := range t.PendingIDs() {
		if isAuthor || (isResponsible && id != viewerID) {
			a.Confirm = append(a.Confirm, id)
		}
	}
	return a
}
