package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"tbot/pkg/notify"
	"tbot/pkg/task"
	"tbot/pkg/user"
)

const (
	author      int64 = 7247710860
	responsible int64 = 609995295
	member1     int64 = 1311714242
	member2     int64 = 678543417
	outsider    int64 = 459228268
	stranger    int64 = 42
)

// --- Mock sender ---

type mockSender struct {
	mu   sync.Mutex
	sent []notify.Message
	fail map[int64]bool
}

func (m *mockSender) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[msg.Recipient] {
		return errors.New("blocked by user")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) take() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}

func recipients(msgs []notify.Message, kind notify.Kind) []int64 {
	var ids []int64
	for _, m := range msgs {
		if m.Kind == kind {
			ids = append(ids, m.Recipient)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sameIDs(got []int64, want ...int64) bool {
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

type fixture struct {
	svc    *Service
	sender *mockSender
	now    time.Time
}

var epoch = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{sender: &mockSender{}, now: epoch}
	store := task.NewStore(task.WithClock(func() time.Time { return f.now }))
	f.svc = New(store, user.DefaultDirectory(),
		WithSender(f.sender),
		WithAdmin(5055233726),
		WithProjects(map[string]string{"quizzes": "Квизы"}),
	)
	return f
}

func (f *fixture) create(t *testing.T) *task.Task {
	t.Helper()
	tk, err := f.svc.Create(context.Background(), task.Draft{
		Title:         "Подготовить квиз",
		AuthorID:      author,
		Priority:      task.PriorityMedium,
		Project:       "quizzes",
		Direction:     "СТН",
		ResponsibleID: responsible,
		Workgroup:     []int64{member1, member2},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.sender.take()
	return tk
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.svc.Create(ctx, task.Draft{
		Title:         "Подготовить квиз",
		AuthorID:      author,
		Direction:     "СТН",
		ResponsibleID: responsible,
		Workgroup:     []int64{member1, member2},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tk.Status != task.StatusNew || tk.Direction != "stn" || tk.Priority != task.PriorityMedium {
		t.Fatalf("task = %+v", tk)
	}
	if want := epoch.AddDate(0, 0, 10); !tk.DueDate.Equal(want) {
		t.Fatalf("due = %v, want %v", tk.DueDate, want)
	}
	if got := recipients(f.sender.take(), notify.KindCreated); !sameIDs(got, responsible, member1, member2) {
		t.Fatalf("created recipients = %v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []task.Draft{
		{AuthorID: author},
		{Title: "x", AuthorID: author, Workgroup: []int64{stranger}},
		{Title: "x", AuthorID: author, ResponsibleID: stranger},
		{Title: "x", AuthorID: author, Direction: "космос"},
		{Title: "x", AuthorID: author, Project: "unknown"},
		{Title: "x", AuthorID: author, Priority: "urgent"},
	}
	for _, d := range cases {
		_, err := f.svc.Create(ctx, d)
		wantCode(t, err, CodeValidation)
	}
	_, err := f.svc.Create(ctx, task.Draft{Title: "x", AuthorID: stranger})
	wantCode(t, err, CodePermissionDenied)
}

func TestTakeByParticipant(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t)

	got, err := f.svc.Take(context.Background(), tk.ID, member1)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.Status != task.StatusActive || got.ExecutorID != member1 {
		t.Fatalf("status=%s executor=%d", got.Status, got.ExecutorID)
	}
	if got.Statuses[author] != task.StatusActive || got.Statuses[member2] != task.StatusNew {
		t.Fatalf("statuses = %v", got.Statuses)
	}
	if got.LastActorID != member1 || got.LastAction != "take" {
		t.Fatalf("last action = %q by %d", got.LastAction, got.LastActorID)
	}
	if r := recipients(f.sender.take(), notify.KindTaken); !sameIDs(r, author, responsible) {
		t.Fatalf("recipients = %v", r)
	}

	_, err = f.svc.Take(context.Background(), tk.ID, member1)
	wantCode(t, err, CodeInvalidTransition)
}

func TestTakeRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	_, err := f.svc.Take(ctx, tk.ID, outsider)
	wantCode(t, err, CodePermissionDenied)
	_, err = f.svc.Take(ctx, tk.ID, stranger)
	wantCode(t, err, CodePermissionDenied)
	_, err = f.svc.Take(ctx, 999, member1)
	wantCode(t, err, CodeNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("errors.Is(ErrNotFound) should match")
	}
}

func TestAuthorTakeDelegatesToResponsible(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t)

	got, err := f.svc.Take(context.Background(), tk.ID, author)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.ExecutorID != responsible || got.Statuses[responsible] != task.StatusActive {
		t.Fatalf("executor=%d statuses=%v", got.ExecutorID, got.Statuses)
	}
	if r := recipients(f.sender.take(), notify.KindTaken); !sameIDs(r, responsible) {
		t.Fatalf("recipients = %v", r)
	}
}

func TestAuthorCannotTakeAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	solo, err := f.svc.Create(ctx, task.Draft{Title: "solo", AuthorID: author, ResponsibleID: author})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Take(ctx, solo.ID, author)
	wantCode(t, err, CodeInvalidTransition)

	open, err := f.svc.Create(ctx, task.Draft{Title: "open", AuthorID: author, Workgroup: []int64{member1}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Take(ctx, open.ID, author)
	wantCode(t, err, CodeInvalidTransition)
}

func TestPause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	_, err := f.svc.Pause(ctx, tk.ID, member1)
	wantCode(t, err, CodeInvalidTransition)

	if _, err := f.svc.Take(ctx, tk.ID, member1); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Pause(ctx, tk.ID, member1)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if got.Status != task.StatusPaused || got.ExecutorID != 0 {
		t.Fatalf("status=%s executor=%d", got.Status, got.ExecutorID)
	}

	_, err = f.svc.Pause(ctx, tk.ID, author)
	wantCode(t, err, CodeInvalidTransition)
}

func TestActiveDominatesPausedThroughActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	for _, id := range []int64{member1, member2} {
		if _, err := f.svc.Take(ctx, tk.ID, id); err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.Pause(ctx, tk.ID, member1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestConfirmationScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	got, err := f.svc.MarkDone(ctx, tk.ID, member1)
	if err != nil {
		t.Fatalf("done: %v", err)
	}
	if got.Status != task.StatusInReview || !got.AwaitingConfirmation || !got.Pending[member1] {
		t.Fatalf("status=%s awaiting=%v pending=%v", got.Status, got.AwaitingConfirmation, got.Pending)
	}
	if r := recipients(f.sender.take(), notify.KindDone); !sameIDs(r, author, responsible) {
		t.Fatalf("done recipients = %v", r)
	}

	_, err = f.svc.MarkDone(ctx, tk.ID, member1)
	wantCode(t, err, CodeInvalidTransition)

	got, err = f.svc.Confirm(ctx, tk.ID, author, member1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(got.Pending) != 0 || got.AwaitingConfirmation {
		t.Fatalf("pending=%v awaiting=%v", got.Pending, got.AwaitingConfirmation)
	}
	if got.Status != task.StatusNew {
		t.Fatalf("status = %s, want new", got.Status)
	}
	if r := recipients(f.sender.take(), notify.KindConfirmed); !sameIDs(r, responsible, member1) {
		t.Fatalf("confirm recipients = %v", r)
	}
}

func TestConfirmChainCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	for _, id := range []int64{responsible, member1, member2} {
		if _, err := f.svc.MarkDone(ctx, tk.ID, id); err != nil {
			t.Fatalf("done %d: %v", id, err)
		}
	}
	if _, err := f.svc.Confirm(ctx, tk.ID, responsible, member1); err != nil {
		t.Fatalf("responsible confirms member: %v", err)
	}
	_, err := f.svc.Confirm(ctx, tk.ID, responsible, responsible)
	wantCode(t, err, CodePermissionDenied)
	_, err = f.svc.Confirm(ctx, tk.ID, member2, responsible)
	wantCode(t, err, CodePermissionDenied)

	if _, err := f.svc.Confirm(ctx, tk.ID, author, responsible); err != nil {
		t.Fatal(err)
	}
	f.sender.take()
	got, err := f.svc.Confirm(ctx, tk.ID, author, member2)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("status=%s completedAt=%v", got.Status, got.CompletedAt)
	}
	if r := recipients(f.sender.take(), notify.KindCompleted); !sameIDs(r, responsible, member1, member2) {
		t.Fatalf("completed recipients = %v", r)
	}
}

func TestConfirmRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	_, err := f.svc.Confirm(ctx, tk.ID, author, member1)
	wantCode(t, err, CodeInvalidTransition)
	_, err = f.svc.Confirm(ctx, tk.ID, author, outsider)
	wantCode(t, err, CodeNotFound)
	_, err = f.svc.Confirm(ctx, tk.ID, author, author)
	wantCode(t, err, CodeNotFound)
}

func TestOverdueTaskCompletesOnLastConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk, err := f.svc.Create(ctx, task.Draft{Title: "late", AuthorID: author, Workgroup: []int64{member1}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.MarkDone(ctx, tk.ID, member1); err != nil {
		t.Fatal(err)
	}

	f.now = epoch.AddDate(0, 1, 0)
	f.svc.Sweep(ctx)

	got, err := f.svc.Confirm(ctx, tk.ID, author, member1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusCompleted || got.StatusBeforeOverdue != "" {
		t.Fatalf("status=%s snapshot=%s", got.Status, got.StatusBeforeOverdue)
	}
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	if _, err := f.svc.MarkDone(ctx, tk.ID, member2); err != nil {
		t.Fatal(err)
	}
	f.sender.take()
	got, err := f.svc.Reject(ctx, tk.ID, author, member2)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != task.StatusActive || got.Statuses[member2] != task.StatusActive || got.AwaitingConfirmation {
		t.Fatalf("status=%s member2=%s awaiting=%v", got.Status, got.Statuses[member2], got.AwaitingConfirmation)
	}
	if r := recipients(f.sender.take(), notify.KindRejected); !sameIDs(r, responsible, member2) {
		t.Fatalf("recipients = %v", r)
	}
}

func TestForceCompleteAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	_, err := f.svc.ForceComplete(ctx, tk.ID, responsible)
	wantCode(t, err, CodePermissionDenied)
	_, err = f.svc.Reopen(ctx, tk.ID, author)
	wantCode(t, err, CodeInvalidTransition)

	if _, err := f.svc.Take(ctx, tk.ID, member1); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.MarkDone(ctx, tk.ID, author)
	if err != nil {
		t.Fatalf("author done: %v", err)
	}
	if got.Status != task.StatusCompleted || got.ExecutorID != 0 {
		t.Fatalf("status=%s executor=%d", got.Status, got.ExecutorID)
	}
	_, err = f.svc.Take(ctx, tk.ID, member2)
	wantCode(t, err, CodeInvalidTransition)
	_, err = f.svc.Reopen(ctx, tk.ID, member1)
	wantCode(t, err, CodePermissionDenied)

	f.sender.take()
	got, err = f.svc.Reopen(ctx, tk.ID, author)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Status != task.StatusNew || got.CompletedAt != nil {
		t.Fatalf("status=%s completedAt=%v", got.Status, got.CompletedAt)
	}
	for id, st := range got.Statuses {
		if st != task.StatusNew {
			t.Fatalf("participant %d = %s after reopen", id, st)
		}
	}
	if r := recipients(f.sender.take(), notify.KindReopened); !sameIDs(r, responsible, member1, member2) {
		t.Fatalf("recipients = %v", r)
	}
}

func TestPostponeOverdueRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)
	if _, err := f.svc.Take(ctx, tk.ID, member1); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Postpone(ctx, tk.ID, author, "01.03.2026")
	if err != nil {
		t.Fatalf("postpone: %v", err)
	}
	if got.Status != task.StatusOverdue {
		t.Fatalf("status = %s, want overdue", got.Status)
	}

	got, err = f.svc.Postpone(ctx, tk.ID, member1, "20-03-2026")
	if err != nil {
		t.Fatalf("executor postpone: %v", err)
	}
	if got.Status != task.StatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}

	got, err = f.svc.Postpone(ctx, tk.ID, author, "-")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got.DueDate != nil || got.Status != task.StatusActive {
		t.Fatalf("clear: due=%v status=%s", got.DueDate, got.Status)
	}

	_, err = f.svc.Postpone(ctx, tk.ID, author, "32.13.2026")
	wantCode(t, err, CodeValidation)
	_, err = f.svc.Postpone(ctx, tk.ID, member2, "20.03.2026")
	wantCode(t, err, CodePermissionDenied)
}

func TestRemind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	if _, err := f.svc.Remind(ctx, tk.ID, author, nil); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if r := recipients(f.sender.take(), notify.KindReminder); !sameIDs(r, responsible, member1, member2) {
		t.Fatalf("recipients = %v", r)
	}

	if _, err := f.svc.Remind(ctx, tk.ID, responsible, []int64{member2}); err != nil {
		t.Fatalf("responsible remind: %v", err)
	}
	if r := recipients(f.sender.take(), notify.KindReminder); !sameIDs(r, member2) {
		t.Fatalf("recipients = %v", r)
	}

	_, err := f.svc.Remind(ctx, tk.ID, responsible, []int64{author})
	wantCode(t, err, CodePermissionDenied)
	_, err = f.svc.Remind(ctx, tk.ID, member1, nil)
	wantCode(t, err, CodePermissionDenied)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	wantCode(t, f.svc.Delete(ctx, tk.ID, responsible), CodePermissionDenied)
	if err := f.svc.Delete(ctx, tk.ID, author); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if r := recipients(f.sender.take(), notify.KindDeleted); !sameIDs(r, responsible, member1, member2) {
		t.Fatalf("recipients = %v", r)
	}
	_, err := f.svc.Get(ctx, tk.ID, author)
	wantCode(t, err, CodeNotFound)

	next := f.create(t)
	if next.ID == tk.ID {
		t.Fatal("deleted id reused")
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)
	f.sender.fail = map[int64]bool{author: true}

	got, err := f.svc.Take(ctx, tk.ID, member1)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.Status != task.StatusActive {
		t.Fatalf("status = %s", got.Status)
	}
	if r := recipients(f.sender.take(), notify.KindTaken); !sameIDs(r, responsible) {
		t.Fatalf("delivered = %v", r)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	if ids := f.svc.Sweep(ctx); len(ids) != 0 {
		t.Fatalf("early sweep = %v", ids)
	}
	f.now = epoch.AddDate(0, 0, 11)
	ids := f.svc.Sweep(ctx)
	if len(ids) != 1 || ids[0] != tk.ID {
		t.Fatalf("sweep = %v", ids)
	}
	if r := recipients(f.sender.take(), notify.KindOverdue); !sameIDs(r, author, responsible) {
		t.Fatalf("recipients = %v", r)
	}
	if ids := f.svc.Sweep(ctx); len(ids) != 0 {
		t.Fatalf("repeat sweep = %v", ids)
	}
}

func TestConcurrentActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tk := f.create(t)

	var wg sync.WaitGroup
	for _, id := range []int64{responsible, member1, member2} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := f.svc.Take(ctx, tk.ID, id); err != nil {
				t.Errorf("take %d: %v", id, err)
			}
			if _, err := f.svc.List(ctx, id, ScopeInvolved, ""); err != nil {
				t.Errorf("list %d: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	v, err := f.svc.Get(ctx, tk.ID, author)
	if err != nil {
		t.Fatal(err)
	}
	if v.Task.Status != task.StatusActive || v.PersonalStatus != task.StatusActive {
		t.Fatalf("status=%s personal=%s", v.Task.Status, v.PersonalStatus)
	}
}

// --- Context-honouring fakes ---

type ctxSender struct {
	mu   sync.Mutex
	sent []int64
}

func (s *ctxSender) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg.Recipient)
	return nil
}

type ctxPersister struct {
	saved  []int64
	failed int
}

func (p *ctxPersister) Save(ctx context.Context, t *task.Task, _ int64) error {
	if err := ctx.Err(); err != nil {
		p.failed++
		return err
	}
	p.saved = append(p.saved, t.ID)
	return nil
}

func (p *ctxPersister) Delete(ctx context.Context, _ int64) error { return ctx.Err() }

func (p *ctxPersister) LoadAll(context.Context) ([]*task.Task, int64, error) { return nil, 0, nil }

func (p *ctxPersister) EnsureTable(context.Context) error { return nil }

func TestCommittedChangeSurvivesCancelledContext(t *testing.T) {
	sender := &ctxSender{}
	persist := &ctxPersister{}
	store := task.NewStore(task.WithClock(func() time.Time { return epoch }))
	svc := New(store, user.DefaultDirectory(), WithSender(sender), WithPersister(persist))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tk, err := svc.Create(ctx, task.Draft{Title: "квиз", AuthorID: author, ResponsibleID: responsible, Workgroup: []int64{member1}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := svc.Take(ctx, tk.ID, member1)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if got.Status != task.StatusActive {
		t.Fatalf("status = %s", got.Status)
	}

	// create reaches responsible and member1, take reaches author and responsible
	sent := append([]int64(nil), sender.sent...)
	sort.Slice(sent, func(i, j int) bool { return sent[i] < sent[j] })
	if !sameIDs(sent, responsible, member1, author, responsible) {
		t.Fatalf("sent = %v", sender.sent)
	}
	if persist.failed != 0 || len(persist.saved) != 2 {
		t.Fatalf("saved=%v failed=%d", persist.saved, persist.failed)
	}
	if ids := svc.Sweep(ctx); len(ids) != 0 {
		t.Fatalf("sweep = %v", ids)
	}
}
