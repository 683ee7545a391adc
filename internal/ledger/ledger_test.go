package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/internal/remote/memory"
	"condosync/pkg/syncerrors"
)

func newSuggestion(t *testing.T, adapter *memory.Adapter) string {
	t.Helper()
	created, err := adapter.Create(context.Background(), "suggestions", remote.Document{
		"title":  "bike rack",
		"status": "pending",
	})
	require.NoError(t, err)
	return created.ID
}

func TestAddIsIdempotentPerUser(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, metrics.NewForTest())
	id := newSuggestion(t, adapter)
	ctx := context.Background()

	first, err := ledger.Add(ctx, "suggestions", id, "votedBy", "votes", "resident-a")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, []string{"resident-a"}, first.Doc.StringSlice("votedBy"))
	assert.Equal(t, 1, first.Doc.Int("votes"))

	second, err := ledger.Add(ctx, "suggestions", id, "votedBy", "votes", "resident-a")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, []string{"resident-a"}, second.Doc.StringSlice("votedBy"))
	assert.Equal(t, 1, second.Doc.Int("votes"))
}

func TestTwoUsersAnyOrder(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, nil)
	id := newSuggestion(t, adapter)
	ctx := context.Background()

	_, err := ledger.Add(ctx, "suggestions", id, "viewedBy", "viewCount", "u2")
	require.NoError(t, err)
	res, err := ledger.Add(ctx, "suggestions", id, "viewedBy", "viewCount", "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Doc.Int("viewCount"))
	assert.ElementsMatch(t, []string{"u1", "u2"}, res.Doc.StringSlice("viewedBy"))
}

func TestCounterEqualsCardinalityUnderConcurrentDuplicates(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, nil)
	id := newSuggestion(t, adapter)
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Add(ctx, "suggestions", id, "likes", "likeCount", "resident-a")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := adapter.Get(ctx, "suggestions", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"resident-a"}, doc.StringSlice("likes"))
	assert.Equal(t, 1, doc.Int("likeCount"))
	assert.Equal(t, len(doc.StringSlice("likes")), doc.Int("likeCount"))
}

func TestRemoveThenReAdd(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, nil)
	id := newSuggestion(t, adapter)
	ctx := context.Background()

	_, err := ledger.Add(ctx, "suggestions", id, "confirmedAttendees", "attendeeCount", "r1")
	require.NoError(t, err)

	removed, err := ledger.Remove(ctx, "suggestions", id, "confirmedAttendees", "attendeeCount", "r1")
	require.NoError(t, err)
	assert.True(t, removed.Changed)
	assert.Equal(t, 0, removed.Doc.Int("attendeeCount"))

	// Removing an absent member is a no-op.
	removed, err = ledger.Remove(ctx, "suggestions", id, "confirmedAttendees", "attendeeCount", "r1")
	require.NoError(t, err)
	assert.False(t, removed.Changed)

	readded, err := ledger.Add(ctx, "suggestions", id, "confirmedAttendees", "attendeeCount", "r1")
	require.NoError(t, err)
	assert.True(t, readded.Changed)
	assert.Equal(t, 1, readded.Doc.Int("attendeeCount"))
}

func TestAddAbsentEntityIsNotFound(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, nil)

	_, err := ledger.Add(context.Background(), "suggestions", "ghost", "likes", "likeCount", "r1")
	assert.True(t, syncerrors.Is(err, syncerrors.KindNotFound))
}

func TestEmptyUserRejected(t *testing.T) {
	adapter := memory.New()
	ledger := NewMembership(adapter, nil)
	id := newSuggestion(t, adapter)

	_, err := ledger.Add(context.Background(), "suggestions", id, "likes", "likeCount", "")
	assert.True(t, syncerrors.Is(err, syncerrors.KindValidation))
}

func TestEmitOnce(t *testing.T) {
	adapter := memory.New()
	emission := NewEmission(adapter, "notifications")
	ctx := context.Background()

	build := func() remote.Document {
		return remote.Document{"title": "Meeting scheduled", "read": false}
	}

	created, err := emission.EmitOnce(ctx, "meeting_created", "m1", "r1", build)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = emission.EmitOnce(ctx, "meeting_created", "m1", "r1", build)
	require.NoError(t, err)
	assert.False(t, created)

	// Same event for a different target user is a distinct key.
	created, err = emission.EmitOnce(ctx, "meeting_created", "m1", "r2", build)
	require.NoError(t, err)
	assert.True(t, created)

	docs, err := adapter.List(ctx, "notifications", remote.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestEmitOnceConcurrentDoubleTap(t *testing.T) {
	adapter := memory.New()
	emission := NewEmission(adapter, "notifications")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := emission.EmitOnce(ctx, "package_delivered", "pkg1", "r1", func() remote.Document {
				return remote.Document{"title": "Package delivered", "read": false}
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	docs, err := adapter.List(ctx, "notifications", remote.Query{
		Where: []remote.Condition{{Field: "relatedItemId", Op: "==", Value: "pkg1"}},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
