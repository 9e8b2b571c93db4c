package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
	fail map[int64]bool
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.fail[msg.Recipient] {
		return errors.New("chat not found")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestFanoutIsolatesFailures(t *testing.T) {
	s := &recordingSender{fail: map[int64]bool{2: true}}
	msgs := Build(NewIDSet(1, 2, 3), 7, KindTaken, "taken")
	require.Len(t, msgs, 3)

	r := Fanout(context.Background(), s, msgs)
	assert.Equal(t, []int64{1, 3}, r.Delivered)
	require.Contains(t, r.Failed, int64(2))
	assert.Len(t, s.sent, 2)
}

func TestFanoutRecoversPanics(t *testing.T) {
	calls := 0
	s := SenderFunc(func(_ context.Context, msg Message) error {
		calls++
		if msg.Recipient == 1 {
			panic("boom")
		}
		return nil
	})
	r := Fanout(context.Background(), s, Build(NewIDSet(1, 2), 1, KindReminder, "ping"))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{2}, r.Delivered)
	assert.Len(t, r.Failed, 1)
}

func TestBuildAssignsIDs(t *testing.T) {
	msgs := Build(NewIDSet(5, 4), 9, KindCreated, "new task", "take")
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(4), msgs[0].Recipient)
	assert.NotEmpty(t, msgs[0].ID)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
	assert.Equal(t, []string{"take"}, msgs[1].Actions)
}

func TestMultiSender(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{fail: map[int64]bool{1: true}}

	assert.NoError(t, Multi{bad, ok}.Send(context.Background(), Message{Recipient: 1}))
	assert.Len(t, ok.sent, 1)
	assert.Error(t, Multi{bad}.Send(context.Background(), Message{Recipient: 1}))
}

func TestIDSetIgnoresZero(t *testing.T) {
	s := NewIDSet(0, 3, 3)
	assert.Equal(t, []int64{3}, s.Slice())
	assert.False(t, s.Has(0))
}
