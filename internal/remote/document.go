package remote

import "time"

// Document is the wire shape of one entity: a flat field map. Typed accessors
// keep the entity engine free of per-domain switch statements.
type Document map[string]any

// ID returns the server-assigned id, empty before create.
func (d Document) ID() string { return d.String(FieldID) }

// String returns the field as a string, or "" when absent or mistyped.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Int returns the field as an int, accepting the numeric types JSON decoding
// and adapters produce.
func (d Document) Int(key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the field as a float64, 0 when absent.
func (d Document) Float(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the field as a bool, false when absent.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Time returns the field as a time.Time, zero when absent. Adapters that
// round-trip through JSON store RFC3339 strings.
func (d Document) Time(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

// StringSlice returns the field as a string slice. Membership sets are stored
// this way; order is not significant.
func (d Document) StringSlice(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy with its own slice copies for membership sets,
// so callers can patch without aliasing cached state.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if ss, ok := v.([]string); ok {
			out[k] = append([]string(nil), ss...)
			continue
		}
		out[k] = v
	}
	return out
}

// Merge applies patch on top of d and returns d. Nil values delete fields.
func (d Document) Merge(patch Document) Document {
	for k, v := range patch {
		if v == nil {
			delete(d, k)
			continue
		}
		d[k] = v
	}
	return d
}

// HasMember reports whether member is present in the named set field.
func (d Document) HasMember(setField, member string) bool {
	for _, m := range d.StringSlice(setField) {
		if m == member {
			return true
		}
	}
	return false
}
