package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindCreated   Kind = "task.created"
	KindTaken     Kind = "task.taken"
	KindPaused    Kind = "task.paused"
	KindDone      Kind = "task.done"
	KindConfirmed Kind = "task.confirmed"
	KindRejected  Kind = "task.rejected"
	KindCompleted Kind = "task.completed"
	KindReopened  Kind = "task.reopened"
	KindPostponed Kind = "task.postponed"
	KindReminder  Kind = "task.reminder"
	KindOverdue   Kind = "task.overdue"
	KindDeleted   Kind = "task.deleted"
)

// Message is one outbound notification for one recipient.
type Message struct {
	ID        string    `json:"id"`
	Recipient int64     `json:"recipient"`
	TaskID    int64     `json:"task_id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Actions   []string  `json:"actions,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Discard drops every message.
var Discard Sender = SenderFunc(func(context.Context, Message) error { return nil })

// Multi delivers through every sender. A message counts as delivered when at
// least one sender accepted it.
type Multi []Sender

// Send tries every sender in order.
func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	delivered := false
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return errors.Join(errs...)
}

// Build creates one message per recipient, in ascending recipient order.
func Build(recipients IDSet, taskID int64, kind Kind, text string, actions ...string) []Message {
	now := time.Now().Truncate(time.Microsecond)
	var msgs []Message
	for _, id := range recipients.Slice() {
		msgs = append(msgs, Message{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Recipient: id,
			TaskID:    taskID,
			Kind:      kind,
			Text:      text,
			Actions:   actions,
			CreatedAt: now,
		})
	}
	return msgs
}

// Report summarizes a fan-out.
type Report struct {
	Delivered []int64
	Failed    map[int64]error
}

// Fanout sends every message. A failure for one recipient is logged and
// skipped; it is never retried and never stops the rest.
func Fanout(ctx context.Context, s Sender, msgs []Message) Report {
	r := Report{Failed: make(map[int64]error)}
	for _, msg := range msgs {
		err := safeSend(ctx, s, msg)
		if err != nil {
			log.Printf("notify: send %s to %d (task %d): %v", msg.Kind, msg.Recipient, msg.TaskID, err)
			r.Failed[msg.Recipient] = err
			continue
		}
		r.Delivered = append(r.Delivered, msg.Recipient)
	}
	return r
}

func safeSend(ctx context.Context, s Sender, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.Send(ctx, msg)
}
