package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condosync/internal/platform/metrics"
	"condosync/internal/remote/memory"
	"condosync/pkg/syncerrors"
)

type captureSink struct {
	mu    sync.Mutex
	notes []Notification
}

func (c *captureSink) Publish(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

func TestNotifyCreatesOnce(t *testing.T) {
	adapter := memory.New()
	sink := &captureSink{}
	notifier := NewNotifier(adapter, sink, metrics.NewForTest(), nil)
	ctx := context.Background()

	note := Notification{
		Title:         "Package delivered",
		Message:       "Signed by Maria",
		Type:          TypePackageDelivered,
		RelatedItemID: "pkg1",
		TargetUserID:  "r1",
	}

	created, err := notifier.Notify(ctx, note)
	require.NoError(t, err)
	assert.True(t, created)

	// Double-tap on the confirmation screen.
	created, err = notifier.Notify(ctx, note)
	require.NoError(t, err)
	assert.False(t, created)

	notes, err := notifier.ListForUser(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Package delivered", notes[0].Title)
	assert.False(t, notes[0].Read)

	// Only the created record reached the sink.
	assert.Len(t, sink.notes, 1)
}

func TestNotifyValidates(t *testing.T) {
	notifier := NewNotifier(memory.New(), nil, nil, nil)

	_, err := notifier.Notify(context.Background(), Notification{Message: "no title"})
	assert.True(t, syncerrors.Is(err, syncerrors.KindValidation))
}

func TestListForUserScopesAndOrders(t *testing.T) {
	adapter := memory.New()
	notifier := NewNotifier(adapter, nil, nil, nil)
	ctx := context.Background()

	for _, n := range []Notification{
		{Title: "first", Type: TypeAnnouncement, RelatedItemID: "a1", TargetUserID: "r1"},
		{Title: "second", Type: TypeAnnouncement, RelatedItemID: "a2", TargetUserID: "r1"},
		{Title: "other user", Type: TypeAnnouncement, RelatedItemID: "a3", TargetUserID: "r2"},
	} {
		_, err := notifier.Notify(ctx, n)
		require.NoError(t, err)
	}

	notes, err := notifier.ListForUser(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Title)
	assert.Equal(t, "first", notes[1].Title)
}

func TestMarkRead(t *testing.T) {
	adapter := memory.New()
	notifier := NewNotifier(adapter, nil, nil, nil)
	ctx := context.Background()

	_, err := notifier.Notify(ctx, Notification{Title: "hello", Type: TypeAnnouncement, TargetUserID: "r1"})
	require.NoError(t, err)

	notes, err := notifier.ListForUser(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.NoError(t, notifier.MarkRead(ctx, notes[0].ID))

	notes, err = notifier.ListForUser(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, notes[0].Read)
}

func TestWorkerDrainsInbox(t *testing.T) {
	adapter := memory.New()
	notifier := NewNotifier(adapter, nil, nil, nil)
	inbox := make(chan Notification, 4)
	worker := NewWorker(notifier, inbox, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	inbox <- Notification{Title: "meeting", Type: TypeMeetingCreated, RelatedItemID: "m1", TargetUserID: "r1"}
	inbox <- Notification{Title: "meeting", Type: TypeMeetingCreated, RelatedItemID: "m1", TargetUserID: "r1"}

	require.Eventually(t, func() bool {
		notes, err := notifier.ListForUser(context.Background(), "r1")
		return err == nil && len(notes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
