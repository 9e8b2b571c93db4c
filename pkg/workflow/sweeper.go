package workflow

import (
	"context"
	"log"
	"time"

	"tbot/pkg/activity"
	"tbot/pkg/notify"
)

// Sweep applies the overdue overlay to every task and tells author and
// responsible about each task that just went overdue. It returns the IDs of
// those tasks.
func (s *Service) Sweep(ctx context.Context) []int64 {
	ctx = context.WithoutCancel(ctx)
	ids, msgs := s.sweep(ctx)
	notify.Fanout(ctx, s.sender, msgs)
	return ids
}

func (s *Service) sweep(ctx context.Context) ([]int64, []notify.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ids  []int64
		msgs []notify.Message
	)
	for _, t := range s.tasks.RefreshAll(s.now()) {
		ids = append(ids, t.ID)
		c := &change{
			entry: activity.Entry{Description: "срок выполнения истёк", StatusChange: true, Related: t.NonAuthorParticipants()},
			msgs:  notify.Build(notify.RecipientsOnTake(t.AuthorID, t.ResponsibleID, 0), t.ID, notify.KindOverdue, textOverdue(t)),
		}
		s.record(ctx, t, 0, c)
		s.save(ctx, t, false)
		msgs = append(msgs, c.msgs...)
	}
	return ids, msgs
}

// Sweeper runs Sweep on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper creates a Sweeper. A non-positive interval means one minute.
func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	log.Printf("sweeper: running every %s", w.interval)

	// Catch up immediately on startup
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("sweeper: shutting down")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sweeper: panic in sweep: %v", r)
		}
	}()
	if ids := w.svc.Sweep(ctx); len(ids) > 0 {
		log.Printf("sweeper: %d task(s) went overdue: %v", len(ids), ids)
	}
}
