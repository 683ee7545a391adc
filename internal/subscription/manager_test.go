package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/internal/remote/memory"
	"condosync/internal/remote/mocks"
)

func waitSnapshot(t *testing.T, ch <-chan []remote.Document) []remote.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	adapter := memory.New()
	manager := NewManager(adapter, metrics.NewForTest(), nil)
	ctx := context.Background()

	snapshots := make(chan []remote.Document, 8)
	cancel := manager.Subscribe(ctx, "news", "feed-screen", remote.Query{}, func(docs []remote.Document) {
		snapshots <- docs
	})
	defer cancel()

	assert.Empty(t, waitSnapshot(t, snapshots))

	_, err := adapter.Create(ctx, "news", remote.Document{"title": "pool closed"})
	require.NoError(t, err)

	docs := waitSnapshot(t, snapshots)
	require.Len(t, docs, 1)
	assert.Equal(t, "pool closed", docs[0].String("title"))
}

func TestResubscribeReplacesPriorListener(t *testing.T) {
	adapter := memory.New()
	manager := NewManager(adapter, metrics.NewForTest(), nil)
	ctx := context.Background()

	first := make(chan []remote.Document, 8)
	manager.Subscribe(ctx, "news", "feed-screen", remote.Query{}, func(docs []remote.Document) {
		first <- docs
	})
	waitSnapshot(t, first)

	second := make(chan []remote.Document, 8)
	cancel := manager.Subscribe(ctx, "news", "feed-screen", remote.Query{}, func(docs []remote.Document) {
		second <- docs
	})
	defer cancel()
	waitSnapshot(t, second)

	assert.Equal(t, 1, manager.Active())

	_, err := adapter.Create(ctx, "news", remote.Document{"title": "gym open"})
	require.NoError(t, err)

	docs := waitSnapshot(t, second)
	assert.Len(t, docs, 1)

	select {
	case docs := <-first:
		t.Fatalf("torn-down listener still receiving: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	adapter := memory.New()
	manager := NewManager(adapter, metrics.NewForTest(), nil)
	ctx := context.Background()

	snapshots := make(chan []remote.Document, 8)
	cancel := manager.Subscribe(ctx, "news", "feed-screen", remote.Query{}, func(docs []remote.Document) {
		snapshots <- docs
	})
	waitSnapshot(t, snapshots)

	cancel()
	cancel() // safe to call twice
	assert.Equal(t, 0, manager.Active())

	_, err := adapter.Create(ctx, "news", remote.Document{"title": "late"})
	require.NoError(t, err)

	select {
	case docs := <-snapshots:
		t.Fatalf("cancelled listener still receiving: %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDistinctConsumersKeepOwnListeners(t *testing.T) {
	adapter := memory.New()
	manager := NewManager(adapter, metrics.NewForTest(), nil)
	ctx := context.Background()

	a := make(chan []remote.Document, 8)
	b := make(chan []remote.Document, 8)
	cancelA := manager.Subscribe(ctx, "news", "feed-screen", remote.Query{}, func(docs []remote.Document) { a <- docs })
	cancelB := manager.Subscribe(ctx, "news", "admin-screen", remote.Query{}, func(docs []remote.Document) { b <- docs })
	defer cancelA()
	defer cancelB()
	waitSnapshot(t, a)
	waitSnapshot(t, b)

	assert.Equal(t, 2, manager.Active())
}

func TestInitialAttachRetriesWithBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)

	attached := make(chan struct{})
	gomock.InOrder(
		adapter.EXPECT().Subscribe(gomock.Any(), "news", gomock.Any(), gomock.Any()).
			Return(nil, errors.New("transport down")),
		adapter.EXPECT().Subscribe(gomock.Any(), "news", gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, string, remote.Query, remote.SnapshotFunc) (remote.CancelFunc, error) {
				close(attached)
				return func() {}, nil
			}),
	)

	manager := NewManager(adapter, metrics.NewForTest(), nil)
	cancel := manager.Subscribe(context.Background(), "news", "feed-screen", remote.Query{}, func([]remote.Document) {})
	defer cancel()

	select {
	case <-attached:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never reattached after transport failure")
	}
}
