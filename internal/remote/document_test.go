package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentAccessors(t *testing.T) {
	now := time.Now().UTC()
	doc := Document{
		"id":        "d1",
		"title":     "hall light broken",
		"viewCount": float64(3), // JSON decoding yields float64
		"amount":    float64(150.5),
		"read":      true,
		"createdAt": now,
		"viewedBy":  []any{"u1", "u2"},
	}

	assert.Equal(t, "d1", doc.ID())
	assert.Equal(t, "hall light broken", doc.String("title"))
	assert.Equal(t, 3, doc.Int("viewCount"))
	assert.Equal(t, 150.5, doc.Float("amount"))
	assert.True(t, doc.Bool("read"))
	assert.Equal(t, now, doc.Time("createdAt"))
	assert.Equal(t, []string{"u1", "u2"}, doc.StringSlice("viewedBy"))
	assert.True(t, doc.HasMember("viewedBy", "u2"))
	assert.False(t, doc.HasMember("viewedBy", "u3"))

	assert.Empty(t, doc.String("missing"))
	assert.Zero(t, doc.Int("missing"))
	assert.True(t, doc.Time("missing").IsZero())
}

func TestDocumentTimeFromRFC3339(t *testing.T) {
	doc := Document{"createdAt": "2026-08-30T10:00:00Z"}
	assert.Equal(t, 2026, doc.Time("createdAt").Year())
}

func TestCloneDoesNotAliasSets(t *testing.T) {
	doc := Document{"likes": []string{"u1"}}
	clone := doc.Clone()
	clone["likes"] = append(clone.StringSlice("likes"), "u2")

	assert.Equal(t, []string{"u1"}, doc.StringSlice("likes"))
	assert.Equal(t, []string{"u1", "u2"}, clone.StringSlice("likes"))
}

func TestMergeDeletesNils(t *testing.T) {
	doc := Document{"a": 1, "b": 2}
	doc.Merge(Document{"b": nil, "c": 3})

	assert.NotContains(t, doc, "b")
	assert.Equal(t, 3, doc.Int("c"))
}

func TestQueryApply(t *testing.T) {
	docs := []Document{
		{"id": "1", "status": "pending", "amount": 100, "createdAt": time.Unix(1, 0)},
		{"id": "2", "status": "resolved", "amount": 50, "createdAt": time.Unix(2, 0)},
		{"id": "3", "status": "pending", "amount": 200, "createdAt": time.Unix(3, 0)},
	}

	got := Query{
		Where:   []Condition{{Field: "status", Op: "==", Value: "pending"}},
		OrderBy: "createdAt",
		Desc:    true,
	}.Apply(docs)

	assert.Equal(t, []string{"3", "1"}, []string{got[0].ID(), got[1].ID()})

	got = Query{
		Where: []Condition{{Field: "amount", Op: ">=", Value: 100}},
		Limit: 1,
	}.Apply(docs)
	assert.Len(t, got, 1)

	got = Query{
		Where: []Condition{{Field: "viewedBy", Op: "array-contains", Value: "u1"}},
	}.Apply([]Document{{"id": "4", "viewedBy": []string{"u1"}}, {"id": "5"}})
	assert.Len(t, got, 1)
	assert.Equal(t, "4", got[0].ID())
}
