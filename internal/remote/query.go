package remote

import (
	"sort"
	"strings"
	"time"
)

// Matches reports whether doc satisfies every condition in q.Where.
func (q Query) Matches(doc Document) bool {
	for _, c := range q.Where {
		if !c.matches(doc) {
			return false
		}
	}
	return true
}

// Apply filters, orders, and truncates docs per the query. Used by adapters
// that fetch whole collections and narrow in process.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if q.Matches(doc) {
			out = append(out, doc)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := Compare(out[i][q.OrderBy], out[j][q.OrderBy]) < 0
			if q.Desc {
				return !less
			}
			return less
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (c Condition) matches(doc Document) bool {
	if c.Op == "array-contains" {
		needle, _ := c.Value.(string)
		return doc.HasMember(c.Field, needle)
	}
	cmp := Compare(doc[c.Field], c.Value)
	switch c.Op {
	case "", "==":
		return cmp == 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// Compare orders the scalar types documents carry. Timestamps compare
// chronologically whether they arrive as time.Time or as RFC3339 strings
// (adapters that round-trip through JSON store the latter). Mixed or unknown
// types fall back to string comparison so sorts stay stable.
func Compare(a, b any) int {
	if at, ok := asTime(a); ok {
		if bt, ok := asTime(b); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(asString(a), asString(b))
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// asString renders comparison operands; times sort by RFC3339 which matches
// chronological order.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	}
	return ""
}
