package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFiltersOrdersAndLimits(t *testing.T) {
	docs := []Document{
		{"id": "s1", "status": "pending", "likeCount": 2},
		{"id": "s2", "status": "approved", "likeCount": 5},
		{"id": "s3", "status": "pending", "likeCount": 9},
	}

	q := Query{
		Where:   []Condition{{Field: "status", Op: "==", Value: "pending"}},
		OrderBy: "likeCount",
		Desc:    true,
		Limit:   1,
	}
	out := q.Apply(docs)
	require.Len(t, out, 1)
	assert.Equal(t, "s3", out[0].ID())
}

func TestCompareOrdersTimestampStrings(t *testing.T) {
	// Whole-second stamps carry no fraction, so lexicographic order would
	// put "…00Z" after "…00.5Z". Chronological order must win.
	whole := "2026-08-01T10:00:00Z"
	fractional := "2026-08-01T10:00:00.5Z"

	assert.Negative(t, Compare(whole, fractional))
	assert.Positive(t, Compare(fractional, whole))
	assert.Zero(t, Compare(whole, whole))

	// Mixed time.Time and string operands compare chronologically too.
	parsed, err := time.Parse(time.RFC3339, whole)
	require.NoError(t, err)
	assert.Negative(t, Compare(parsed, fractional))

	docs := []Document{
		{"id": "n1", "createdAt": fractional},
		{"id": "n2", "createdAt": whole},
	}
	out := Query{OrderBy: "createdAt", Desc: true}.Apply(docs)
	require.Len(t, out, 2)
	assert.Equal(t, "n1", out[0].ID())
}
