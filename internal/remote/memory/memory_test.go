package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

type MemoryAdapterSuite struct {
	suite.Suite
	adapter *Adapter
	ctx     context.Context
}

func (s *MemoryAdapterSuite) SetupTest() {
	s.adapter = New()
	s.ctx = context.Background()
}

func (s *MemoryAdapterSuite) TestCreateAssignsIDAndTimestamp() {
	created, err := s.adapter.Create(s.ctx, "pets", remote.Document{"name": "Rex"})
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), created.ID)
	assert.False(s.T(), created.CreatedAt.IsZero())

	doc, err := s.adapter.Get(s.ctx, "pets", created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.ID, doc.ID())
	assert.Equal(s.T(), "Rex", doc.String("name"))
}

func (s *MemoryAdapterSuite) TestCreatedAtStrictlyIncreasing() {
	first, err := s.adapter.Create(s.ctx, "news", remote.Document{"title": "a"})
	require.NoError(s.T(), err)
	second, err := s.adapter.Create(s.ctx, "news", remote.Document{"title": "b"})
	require.NoError(s.T(), err)
	assert.True(s.T(), second.CreatedAt.After(first.CreatedAt))
}

func (s *MemoryAdapterSuite) TestGetAbsentIsNotFound() {
	_, err := s.adapter.Get(s.ctx, "pets", "missing")
	assert.True(s.T(), syncerrors.Is(err, syncerrors.KindNotFound))
}

func (s *MemoryAdapterSuite) TestUpdateAbsentIsNotFound() {
	err := s.adapter.Update(s.ctx, "pets", "missing", remote.Document{"name": "x"})
	assert.True(s.T(), syncerrors.Is(err, syncerrors.KindNotFound))
}

func (s *MemoryAdapterSuite) TestUpdatePreservesIdentityFields() {
	created, err := s.adapter.Create(s.ctx, "pets", remote.Document{"name": "Rex"})
	require.NoError(s.T(), err)

	err = s.adapter.Update(s.ctx, "pets", created.ID, remote.Document{
		"name":                "Max",
		remote.FieldID:        "forged",
		remote.FieldCreatedAt: "forged",
	})
	require.NoError(s.T(), err)

	doc, err := s.adapter.Get(s.ctx, "pets", created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), created.ID, doc.ID())
	assert.Equal(s.T(), created.CreatedAt, doc.Time(remote.FieldCreatedAt))
	assert.Equal(s.T(), "Max", doc.String("name"))
	assert.True(s.T(), doc.Time(remote.FieldUpdatedAt).After(created.CreatedAt))
}

func (s *MemoryAdapterSuite) TestDeleteIdempotent() {
	created, err := s.adapter.Create(s.ctx, "pets", remote.Document{"name": "Rex"})
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.adapter.Delete(s.ctx, "pets", created.ID))
	require.NoError(s.T(), s.adapter.Delete(s.ctx, "pets", created.ID))
	require.NoError(s.T(), s.adapter.Delete(s.ctx, "pets", "never-existed"))
}

func (s *MemoryAdapterSuite) TestListOrderAndFilter() {
	_, err := s.adapter.Create(s.ctx, "problems", remote.Document{"title": "leak", "status": "pending"})
	require.NoError(s.T(), err)
	_, err = s.adapter.Create(s.ctx, "problems", remote.Document{"title": "noise", "status": "resolved"})
	require.NoError(s.T(), err)
	_, err = s.adapter.Create(s.ctx, "problems", remote.Document{"title": "elevator", "status": "pending"})
	require.NoError(s.T(), err)

	docs, err := s.adapter.List(s.ctx, "problems", remote.Query{
		Where:   []remote.Condition{{Field: "status", Op: "==", Value: "pending"}},
		OrderBy: remote.FieldCreatedAt,
		Desc:    true,
	})
	require.NoError(s.T(), err)
	require.Len(s.T(), docs, 2)
	assert.Equal(s.T(), "elevator", docs[0].String("title"))
	assert.Equal(s.T(), "leak", docs[1].String("title"))
}

func (s *MemoryAdapterSuite) TestSubscribeDeliversInitialAndCommits() {
	var snapshots [][]remote.Document
	cancel, err := s.adapter.Subscribe(s.ctx, "news", remote.Query{}, func(docs []remote.Document) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(s.T(), err)
	defer cancel()

	require.Len(s.T(), snapshots, 1)
	assert.Empty(s.T(), snapshots[0])

	_, err = s.adapter.Create(s.ctx, "news", remote.Document{"title": "pool closed"})
	require.NoError(s.T(), err)
	require.Len(s.T(), snapshots, 2)
	assert.Len(s.T(), snapshots[1], 1)

	cancel()
	_, err = s.adapter.Create(s.ctx, "news", remote.Document{"title": "pool open"})
	require.NoError(s.T(), err)
	assert.Len(s.T(), snapshots, 2)
}

func (s *MemoryAdapterSuite) TestAtomicAddAndRemove() {
	created, err := s.adapter.Create(s.ctx, "suggestions", remote.Document{"title": "bike rack"})
	require.NoError(s.T(), err)

	added, err := s.adapter.AddToSetAndCount(s.ctx, "suggestions", created.ID, "likes", "likeCount", "u1")
	require.NoError(s.T(), err)
	assert.True(s.T(), added)

	added, err = s.adapter.AddToSetAndCount(s.ctx, "suggestions", created.ID, "likes", "likeCount", "u1")
	require.NoError(s.T(), err)
	assert.False(s.T(), added)

	doc, err := s.adapter.Get(s.ctx, "suggestions", created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"u1"}, doc.StringSlice("likes"))
	assert.Equal(s.T(), 1, doc.Int("likeCount"))

	removed, err := s.adapter.RemoveFromSetAndCount(s.ctx, "suggestions", created.ID, "likes", "likeCount", "u1")
	require.NoError(s.T(), err)
	assert.True(s.T(), removed)

	removed, err = s.adapter.RemoveFromSetAndCount(s.ctx, "suggestions", created.ID, "likes", "likeCount", "u1")
	require.NoError(s.T(), err)
	assert.False(s.T(), removed)

	doc, err = s.adapter.Get(s.ctx, "suggestions", created.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), doc.StringSlice("likes"))
	assert.Equal(s.T(), 0, doc.Int("likeCount"))
}

func TestMemoryAdapterSuite(t *testing.T) {
	suite.Run(t, new(MemoryAdapterSuite))
}
