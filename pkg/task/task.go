package task

import (
	"fmt"
	"strings"
	"time"
)

// Status is either a participant's own progress or a task's aggregate state.
// Participants only ever hold new, active, paused or completed; the author
// additionally mirrors in_review. Overdue exists only at the aggregate level.
type Status string

const (
	StatusNew       Status = "new"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusInReview  Status = "in_review"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

// Priority determines the automatic due-date offset.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// OffsetDays returns how many days after creation a task of this priority is due.
func (p Priority) OffsetDays() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 10
	case PriorityLow:
		return 15
	}
	return 10
}

// ParsePriority accepts the canonical names case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return p, nil
	case "":
		return PriorityMedium, nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Task is a unit of work tracked through its participants.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AuthorID    int64      `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	Project     string     `json:"project"`
	Direction   string     `json:"direction"`

	ResponsibleID int64   `json:"responsible_id"` // 0 = unset
	Workgroup     []int64 `json:"workgroup"`
	Private       bool    `json:"private"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExecutorID  int64      `json:"executor_id"` // 0 = nobody holds the task

	LastAction   string     `json:"last_action,omitempty"`
	LastActorID  int64      `json:"last_actor_id,omitempty"`
	LastActionAt *time.Time `json:"last_action_at,omitempty"`

	// StatusBeforeOverdue holds the computed status while Status is overdue.
	StatusBeforeOverdue Status `json:"status_before_overdue,omitempty"`

	Statuses             map[int64]Status `json:"participant_statuses"`
	Pending              map[int64]bool   `json:"pending_confirmations"`
	AwaitingConfirmation bool             `json:"awaiting_confirmation"`
}

// Draft is a task still being assembled by a multi-step creation dialog.
// Unset optional fields are nil.
type Draft struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	AuthorID      int64      `json:"author_id"`
	Priority      Priority   `json:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	Project       string     `json:"project"`
	Direction     string     `json:"direction"`
	ResponsibleID int64      `json:"responsible_id"`
	Workgroup     []int64    `json:"workgroup"`
	Private       bool       `json:"private"`
}

// Validate reports the first missing required field.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if d.AuthorID == 0 {
		return fmt.Errorf("author is required")
	}
	if _, err := ParsePriority(string(d.Priority)); err != nil {
		return err
	}
	return nil
}

// RecordAction stamps the last action for the audit trail.
func (t *Task) RecordAction(actorID int64, action string, at time.Time) {
	t.LastAction = action
	t.LastActorID = actorID
	t.LastActionAt = &at
}

// Clone returns a deep copy safe to hand out of the store.
func (t *Task) Clone() *Task {
	cp := *t
	cp.Workgroup = append([]int64(nil), t.Workgroup...)
	cp.Statuses = make(map[int64]Status, len(t.Statuses))
	for id, s := range t.Statuses {
		cp.Statuses[id] = s
	}
	cp.Pending = make(map[int64]bool, len(t.Pending))
	for id := range t.Pending {
		cp.Pending[id] = true
	}
	if t.DueDate != nil {
		d := *t.DueDate
		cp.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		cp.CompletedAt = &c
	}
	if t.LastActionAt != nil {
		a := *t.LastActionAt
		cp.LastActionAt = &a
	}
	return &cp
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
