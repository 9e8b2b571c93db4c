package task

import "time"

// Participants returns author, responsible and workgroup members in that
// order, without duplicates.
func (t *Task) Participants() []int64 {
	ids := make([]int64, 0, 2+len(t.Workgroup))
	ids = append(ids, t.AuthorID)
	if t.ResponsibleID != 0 {
		ids = append(ids, t.ResponsibleID)
	}
	ids = append(ids, t.Workgroup...)
	return dedupe(ids)
}

// NonAuthorParticipants returns every participant except the author.
func (t *Task) NonAuthorParticipants() []int64 {
	var ids []int64
	for _, id := range t.Participants() {
		if id != t.AuthorID {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsInvolved reports whether the user is author, responsible or in the workgroup.
func (t *Task) IsInvolved(userID int64) bool {
	if userID == 0 {
		return false
	}
	if userID == t.AuthorID || userID == t.ResponsibleID {
		return true
	}
	for _, id := range t.Workgroup {
		if id == userID {
			return true
		}
	}
	return false
}

// ParticipantStatus returns the user's own status, creating a new entry on
// first access.
func (t *Task) ParticipantStatus(userID int64) Status {
	if t.Statuses == nil {
		t.Statuses = make(map[int64]Status)
	}
	s, ok := t.Statuses[userID]
	if !ok {
		s = StatusNew
		t.Statuses[userID] = s
	}
	return s
}

// PersonalStatus is the status a viewer sees: their own entry when they take
// part in the task, the aggregate otherwise.
func (t *Task) PersonalStatus(viewerID int64) Status {
	if viewerID == 0 || !t.IsInvolved(viewerID) {
		return t.Status
	}
	return t.ParticipantStatus(viewerID)
}

// CalculateOverallStatus derives the aggregate status from the non-author
// participants and the confirmation queue. It ignores the overdue overlay.
func (t *Task) CalculateOverallStatus() Status {
	others := t.NonAuthorParticipants()
	statuses := make([]Status, 0, len(others))
	for _, id := range others {
		statuses = append(statuses, t.ParticipantStatus(id))
	}

	if t.AwaitingConfirmation && len(t.Pending) > 0 {
		return StatusInReview
	}
	if len(statuses) == 0 {
		return StatusNew
	}
	if all(statuses, StatusCompleted) {
		return StatusCompleted
	}
	if anyOf(statuses, StatusActive) {
		return StatusActive
	}
	if anyOf(statuses, StatusPaused) {
		return StatusPaused
	}
	return StatusNew
}

// syncAuthorStatus mirrors the team's progress into the author's own entry.
// A task without other participants leaves the author untouched.
func (t *Task) syncAuthorStatus() {
	others := t.NonAuthorParticipants()
	if len(others) == 0 {
		return
	}
	t.ParticipantStatus(t.AuthorID)

	if t.AwaitingConfirmation && len(t.Pending) > 0 {
		t.Statuses[t.AuthorID] = StatusInReview
		return
	}

	statuses := make([]Status, 0, len(others))
	for _, id := range others {
		statuses = append(statuses, t.ParticipantStatus(id))
	}
	switch {
	case anyOf(statuses, StatusActive):
		t.Statuses[t.AuthorID] = StatusActive
	case anyOf(statuses, StatusPaused):
		t.Statuses[t.AuthorID] = StatusPaused
	case all(statuses, StatusCompleted):
		t.Statuses[t.AuthorID] = StatusCompleted
	default:
		t.Statuses[t.AuthorID] = StatusNew
	}
}

// Recalc recomputes the aggregate status. While overdue, the fresh value is
// parked in StatusBeforeOverdue and Status stays overdue.
func (t *Task) Recalc() {
	next := t.CalculateOverallStatus()
	if t.Status == StatusOverdue {
		t.StatusBeforeOverdue = next
	} else {
		t.Status = next
		t.StatusBeforeOverdue = ""
	}
	t.syncAuthorStatus()
}

// Refresh applies the overdue overlay against ref. Completed tasks are left
// alone.
func (t *Task) Refresh(ref time.Time) {
	if t.Status == StatusCompleted {
		return
	}

	switch {
	case t.DueDate != nil && t.DueDate.Before(ref):
		if t.Status != StatusOverdue {
			t.StatusBeforeOverdue = t.CalculateOverallStatus()
		}
		t.Status = StatusOverdue
	case t.Status == StatusOverdue:
		prev := t.StatusBeforeOverdue
		if prev == "" {
			prev = t.CalculateOverallStatus()
		}
		t.Status = prev
		t.StatusBeforeOverdue = ""
	default:
		t.Recalc()
	}
}

// IsOverdue reports whether the overlay is active.
func (t *Task) IsOverdue() bool {
	return t.Status == StatusOverdue
}

// SetParticipantStatus writes one participant's own status and recomputes.
func (t *Task) SetParticipantStatus(userID int64, s Status) {
	t.ParticipantStatus(userID)
	t.Statuses[userID] = s
	t.Recalc()
}

// SetAllParticipantsStatus applies s to every participant, the author included.
func (t *Task) SetAllParticipantsStatus(s Status) {
	for _, id := range t.Participants() {
		t.ParticipantStatus(id)
		t.Statuses[id] = s
	}
	t.Recalc()
}

// AddPendingConfirmation queues a participant for the author's sign-off.
func (t *Task) AddPendingConfirmation(userID int64) {
	if t.Pending == nil {
		t.Pending = make(map[int64]bool)
	}
	t.Pending[userID] = true
	t.AwaitingConfirmation = true
	t.Recalc()
}

// RemovePendingConfirmation drops a participant from the queue.
func (t *Task) RemovePendingConfirmation(userID int64) {
	delete(t.Pending, userID)
	if len(t.Pending) == 0 {
		t.AwaitingConfirmation = false
	}
	t.Recalc()
}

// ClearPendingConfirmations empties the queue.
func (t *Task) ClearPendingConfirmations() {
	t.Pending = make(map[int64]bool)
	t.AwaitingConfirmation = false
	t.Recalc()
}

// IsPending reports whether the participant awaits confirmation.
func (t *Task) IsPending(userID int64) bool {
	return t.Pending[userID]
}

// PendingIDs returns the confirmation queue in participant order.
func (t *Task) PendingIDs() []int64 {
	var ids []int64
	for _, id := range t.Participants() {
		if t.Pending[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// Complete finalizes the task: every participant completed, queue cleared,
// overlay dropped.
func (t *Task) Complete(at time.Time) {
	for _, id := range t.Participants() {
		t.ParticipantStatus(id)
		t.Statuses[id] = StatusCompleted
	}
	t.Pending = make(map[int64]bool)
	t.AwaitingConfirmation = false
	t.ExecutorID = 0
	t.Status = StatusCompleted
	t.StatusBeforeOverdue = ""
	t.CompletedAt = &at
}

// Reopen returns a completed task to work: everyone back to new, no executor,
// no pending confirmations. The overlay is re-evaluated against ref.
func (t *Task) Reopen(ref time.Time) {
	t.CompletedAt = nil
	t.ExecutorID = 0
	t.Pending = make(map[int64]bool)
	t.AwaitingConfirmation = false
	t.Status = StatusNew
	t.StatusBeforeOverdue = ""
	t.SetAllParticipantsStatus(StatusNew)
	t.Refresh(ref)
}

func all(statuses []Status, want Status) bool {
	for _, s := range statuses {
		if s != want {
			return false
		}
	}
	return true
}

func anyOf(statuses []Status, want Status) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
