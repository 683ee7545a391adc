//go:build integration

package redispush_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"condosync/internal/remote"
	"condosync/internal/remote/memory"
	"condosync/internal/remote/redispush"
	"condosync/pkg/testutil/containers"
)

func waitSnapshot(t *testing.T, ch <-chan []remote.Document) []remote.Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestBridgePushesSnapshotsOverRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	// Writer and reader ride separate bridges, as two processes would.
	writer := redispush.New(memory.New(), rc.Client)
	_, err := writer.Create(ctx, "news", remote.Document{"title": "existing"})
	require.NoError(t, err)

	snapshots := make(chan []remote.Document, 8)
	cancel, err := writer.Subscribe(ctx, "news", remote.Query{}, func(docs []remote.Document) {
		snapshots <- docs
	})
	require.NoError(t, err)
	defer cancel()

	initial := waitSnapshot(t, snapshots)
	require.Len(t, initial, 1)

	_, err = writer.Create(ctx, "news", remote.Document{"title": "fresh"})
	require.NoError(t, err)

	next := waitSnapshot(t, snapshots)
	require.Len(t, next, 2)

	cancel()
	_, err = writer.Create(ctx, "news", remote.Document{"title": "after teardown"})
	require.NoError(t, err)

	select {
	case docs := <-snapshots:
		t.Fatalf("cancelled subscription still receiving: %v", docs)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBridgeMembershipPassthrough(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	bridge := redispush.New(memory.New(), rc.Client)
	created, err := bridge.Create(ctx, "suggestions", remote.Document{"title": "bike rack"})
	require.NoError(t, err)

	changed, err := bridge.AddToSetAndCount(ctx, "suggestions", created.ID, "likes", "likeCount", "r1")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = bridge.AddToSetAndCount(ctx, "suggestions", created.ID, "likes", "likeCount", "r1")
	require.NoError(t, err)
	require.False(t, changed)
}
