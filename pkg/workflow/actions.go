package workflow

import (
	"context"
	"time"

	"tbot/pkg/activity"
	"tbot/pkg/notify"
	"tbot/pkg/task"
)

// Create validates the draft, stores the task and tells the responsible and
// the workgroup about it.
func (s *Service) Create(ctx context.Context, d task.Draft) (*task.Task, error) {
	if err := s.authorize(d.AuthorID); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, validation("%v", err)
	}
	prio, err := task.ParsePriority(string(d.Priority))
	if err != nil {
		return nil, validation("%v", err)
	}
	d.Priority = prio
	if d.ResponsibleID != 0 && !s.users.Contains(d.ResponsibleID) {
		return nil, validation("responsible %d is not on the roster", d.ResponsibleID)
	}
	for _, id := range d.Workgroup {
		if !s.users.Contains(id) {
			return nil, validation("workgroup member %d is not on the roster", id)
		}
	}
	if d.Direction != "" {
		code, ok := s.users.NormalizeDirection(d.Direction)
		if !ok {
			return nil, validation("unknown direction %q", d.Direction)
		}
		d.Direction = code
	}
	if d.Project != "" && len(s.projects) > 0 {
		if _, ok := s.projects[d.Project]; !ok {
			return nil, validation("unknown project %q", d.Project)
		}
	}

	ctx = context.WithoutCancel(ctx)
	out, c := s.insert(ctx, d)
	notify.Fanout(ctx, s.sender, c.msgs)
	return out, nil
}

func (s *Service) insert(ctx context.Context, d task.Draft) (*task.Task, *change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks.Create(d)
	t.RecordAction(d.AuthorID, "create", s.now())
	c := &change{
		action: "create",
		entry:  activity.Entry{Description: "создал(а) задачу"},
		msgs: notify.Build(notify.RecipientsOnCreate(t), t.ID, notify.KindCreated,
			textCreated(t, s.users.Name(d.AuthorID)), "take"),
	}
	s.record(ctx, t, d.AuthorID, c)
	s.save(ctx, t, false)
	return t.Clone(), c
}

// Take starts the actor's own work on the task. When the author takes, the
// task is handed to the responsible instead.
func (s *Service) Take(ctx context.Context, taskID, actorID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, _ time.Time) (*change, error) {
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		if !t.IsInvolved(actorID) {
			return nil, forbidden("user %d is not a participant of task %d", actorID, t.ID)
		}
		if actorID == t.AuthorID {
			return s.delegate(t, actorID)
		}
		if err := canStart(t, actorID); err != nil {
			return nil, err
		}

		t.SetParticipantStatus(actorID, task.StatusActive)
		t.ExecutorID = actorID
		return &change{
			action: "take",
			entry:  activity.Entry{Description: "взял(а) задачу в работу", StatusChange: true, Related: []int64{actorID}},
			msgs: notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, actorID), t.ID, notify.KindTaken,
				textTaken(t, s.users.Name(actorID))),
		}, nil
	})
}

func (s *Service) delegate(t *task.Task, actorID int64) (*change, error) {
	if !notify.ShouldShowTakeButton(t.AuthorID, t.ResponsibleID, actorID) {
		return nil, invalid("task %d has nobody but its author to take it", t.ID)
	}
	if t.ResponsibleID == 0 {
		return nil, invalid("task %d has no responsible to hand it to", t.ID)
	}
	if err := canStart(t, t.ResponsibleID); err != nil {
		return nil, err
	}

	t.SetParticipantStatus(t.ResponsibleID, task.StatusActive)
	t.ExecutorID = t.ResponsibleID
	return &change{
		action: "delegate",
		entry:  activity.Entry{Description: "передал(а) задачу в работу ответственному", StatusChange: true, Related: []int64{t.ResponsibleID}},
		msgs: notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, actorID), t.ID, notify.KindTaken,
			textDelegated(t, s.users.Name(actorID), s.users.Name(t.ResponsibleID))),
	}, nil
}

func canStart(t *task.Task, id int64) error {
	if t.IsPending(id) {
		return invalid("part of user %d in task %d awaits confirmation", id, t.ID)
	}
	switch t.ParticipantStatus(id) {
	case task.StatusActive:
		return invalid("user %d is already working on task %d", id, t.ID)
	case task.StatusCompleted:
		return invalid("part of user %d in task %d is completed", id, t.ID)
	}
	return nil
}

// Pause suspends the actor's own work.
func (s *Service) Pause(ctx context.Context, taskID, actorID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, _ time.Time) (*change, error) {
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		if !t.IsInvolved(actorID) {
			return nil, forbidden("user %d is not a participant of task %d", actorID, t.ID)
		}
		if actorID == t.AuthorID {
			return nil, invalid("the author does not work on task %d", t.ID)
		}
		if t.ParticipantStatus(actorID) != task.StatusActive {
			return nil, invalid("user %d is not working on task %d", actorID, t.ID)
		}

		t.SetParticipantStatus(actorID, task.StatusPaused)
		if t.ExecutorID == actorID {
			t.ExecutorID = 0
		}
		return &change{
			action: "pause",
			entry:  activity.Entry{Description: "поставил(а) задачу на паузу", StatusChange: true, Related: []int64{actorID}},
			msgs: notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, actorID), t.ID, notify.KindPaused,
				textPaused(t, s.users.Name(actorID))),
		}, nil
	})
}

// MarkDone reports the actor's part as finished. A participant waits for the
// author's confirmation; the author completes the whole task outright.
func (s *Service) MarkDone(ctx context.Context, taskID, actorID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, now time.Time) (*change, error) {
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		if !t.IsInvolved(actorID) {
			return nil, forbidden("user %d is not a participant of task %d", actorID, t.ID)
		}
		if actorID == t.AuthorID {
			return s.finish(t, actorID, now), nil
		}
		if t.IsPending(actorID) {
			return nil, invalid("part of user %d in task %d already awaits confirmation", actorID, t.ID)
		}
		if t.ParticipantStatus(actorID) == task.StatusCompleted {
			return nil, invalid("part of user %d in task %d is completed", actorID, t.ID)
		}

		t.AddPendingConfirmation(actorID)
		if t.ExecutorID == actorID {
			t.ExecutorID = 0
		}
		return &change{
			action: "done",
			entry:  activity.Entry{Description: "отметил(а) выполнение своей части", StatusChange: true, Related: []int64{actorID}},
			msgs: notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, actorID), t.ID, notify.KindDone,
				textDone(t, s.users.Name(actorID)), "confirm", "reject"),
		}, nil
	})
}

// ForceComplete lets the author close the task regardless of progress.
func (s *Service) ForceComplete(ctx context.Context, taskID, actorID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, now time.Time) (*change, error) {
		if actorID != t.AuthorID {
			return nil, forbidden("only the author may complete task %d", t.ID)
		}
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		return s.finish(t, actorID, now), nil
	})
}

func (s *Service) finish(t *task.Task, actorID int64, now time.Time) *change {
	t.Complete(now)
	return &change{
		action: "complete",
		entry:  activity.Entry{Description: "завершил(а) задачу", StatusChange: true, Related: t.NonAuthorParticipants()},
		msgs:   notify.Build(notify.RecipientsOnReopen(t, actorID), t.ID, notify.KindCompleted, textCompleted(t)),
	}
}

// Confirm accepts a participant's finished part. The task completes once
// every non-author participant is confirmed.
func (s *Service) Confirm(ctx context.Context, taskID, actorID, participantID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, now time.Time) (*change, error) {
		if err := s.checkReview(t, actorID, participantID); err != nil {
			return nil, err
		}

		t.SetParticipantStatus(participantID, task.StatusCompleted)
		t.RemovePendingConfirmation(participantID)

		name, participant := s.users.Name(actorID), s.users.Name(participantID)
		c := &change{
			action: "confirm",
			entry:  activity.Entry{Description: "подтвердил(а) выполнение: " + participant, StatusChange: true, Related: []int64{participantID}},
			msgs: notify.Build(notify.RecipientsOnConfirmation(t.AuthorID, t.ResponsibleID, actorID, participantID), t.ID,
				notify.KindConfirmed, textConfirmed(t, name, participant)),
		}
		if t.CalculateOverallStatus() == task.StatusCompleted {
			t.Complete(now)
			c.msgs = append(c.msgs, notify.Build(notify.RecipientsOnReopen(t, actorID), t.ID, notify.KindCompleted, textCompleted(t))...)
		}
		return c, nil
	})
}

// Reject sends a participant's part back for rework.
func (s *Service) Reject(ctx context.Context, taskID, actorID, participantID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, _ time.Time) (*change, error) {
		if err := s.checkReview(t, actorID, participantID); err != nil {
			return nil, err
		}

		t.SetParticipantStatus(participantID, task.StatusActive)
		t.RemovePendingConfirmation(participantID)

		name, participant := s.users.Name(actorID), s.users.Name(participantID)
		return &change{
			action: "reject",
			entry:  activity.Entry{Description: "вернул(а) на доработку: " + participant, StatusChange: true, Related: []int64{participantID}},
			msgs: notify.Build(notify.RecipientsOnConfirmation(t.AuthorID, t.ResponsibleID, actorID, participantID), t.ID,
				notify.KindRejected, textRejected(t, name, participant)),
		}, nil
	})
}

// checkReview guards Confirm and Reject. The author reviews anyone; the
// responsible reviews everyone but themselves.
func (s *Service) checkReview(t *task.Task, actorID, participantID int64) error {
	if t.Status == task.StatusCompleted {
		return invalid("task %d is completed", t.ID)
	}
	switch {
	case actorID == t.AuthorID:
	case t.ResponsibleID != 0 && actorID == t.ResponsibleID:
		if participantID == actorID {
			return forbidden("the responsible cannot confirm their own part of task %d", t.ID)
		}
	default:
		return forbidden("only the author or the responsible may review task %d", t.ID)
	}
	if participantID == t.AuthorID || !t.IsInvolved(participantID) {
		return notFound("user %d is not a participant of task %d", participantID, t.ID)
	}
	if !t.IsPending(participantID) {
		return invalid("user %d is not awaiting confirmation in task %d", participantID, t.ID)
	}
	return nil
}

// Reopen returns a completed task to work. Everyone starts over as new.
func (s *Service) Reopen(ctx context.Context, taskID, actorID int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, now time.Time) (*change, error) {
		if actorID != t.AuthorID {
			return nil, forbidden("only the author may return task %d to work", t.ID)
		}
		if t.Status != task.StatusCompleted {
			return nil, invalid("task %d is not completed", t.ID)
		}

		t.Reopen(now)
		return &change{
			action: "reopen",
			entry:  activity.Entry{Description: "вернул(а) задачу в работу", StatusChange: true, Related: t.NonAuthorParticipants()},
			msgs: notify.Build(notify.RecipientsOnReopen(t, actorID), t.ID, notify.KindReopened,
				textReopened(t, s.users.Name(actorID)), "take"),
		}, nil
	})
}

// Postpone moves or clears the due date. dateText is DD.MM.YYYY, DD-MM-YYYY
// or "-" to clear.
func (s *Service) Postpone(ctx context.Context, taskID, actorID int64, dateText string) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, now time.Time) (*change, error) {
		if !notify.CanManage(t, actorID) {
			return nil, forbidden("user %d may not change the due date of task %d", actorID, t.ID)
		}
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		due, err := ParseDueDate(dateText, s.loc)
		if err != nil {
			return nil, err
		}

		t.DueDate = due
		t.Refresh(now)
		shown := FormatDueDate(due, s.loc)
		return &change{
			action: "postpone",
			entry:  activity.Entry{Description: "изменил(а) срок: " + shown},
			msgs: notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, actorID), t.ID, notify.KindPostponed,
				textPostponed(t, s.users.Name(actorID), shown)),
		}, nil
	})
}

// Remind pings participants. An empty target list reminds everyone the actor
// is allowed to remind.
func (s *Service) Remind(ctx context.Context, taskID, actorID int64, targets []int64) (*task.Task, error) {
	return s.apply(ctx, taskID, actorID, func(t *task.Task, _ time.Time) (*change, error) {
		allowed := notify.AllowedReminderTargets(t, actorID)
		if len(allowed) == 0 {
			return nil, forbidden("user %d may not send reminders for task %d", actorID, t.ID)
		}
		if t.Status == task.StatusCompleted {
			return nil, invalid("task %d is completed", t.ID)
		}
		recipients := allowed
		if len(targets) > 0 {
			recipients = notify.NewIDSet()
			for _, id := range targets {
				if !allowed.Has(id) {
					return nil, forbidden("user %d may not remind user %d about task %d", actorID, id, t.ID)
				}
				recipients.Add(id)
			}
		}
		return &change{
			action: "remind",
			entry:  activity.Entry{Description: "отправил(а) напоминание", Related: recipients.Slice()},
			msgs: notify.Build(recipients, t.ID, notify.KindReminder,
				textReminder(t, s.users.Name(actorID))),
		}, nil
	})
}

// Delete removes the task. Only its author may do so.
func (s *Service) Delete(ctx context.Context, taskID, actorID int64) error {
	_, err := s.apply(ctx, taskID, actorID, func(t *task.Task, _ time.Time) (*change, error) {
		if actorID != t.AuthorID {
			return nil, forbidden("only the author may delete task %d", t.ID)
		}
		s.tasks.Delete(t.ID)
		return &change{
			deleted: true,
			entry:   activity.Entry{Description: "удалил(а) задачу"},
			msgs: notify.Build(notify.RecipientsOnReopen(t, actorID), t.ID, notify.KindDeleted,
				textDeleted(t, s.users.Name(actorID))),
		}, nil
	})
	return err
}
