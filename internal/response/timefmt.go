package response

import (
	"fmt"
	"strings"
	"time"
)

// Dispatch-facing documents carry millisecond precision with a literal Z;
// internally parsed values keep full microseconds and no Z coercion.
const (
	dispatchLayout = "2006-01-02T15:04:05.000"
	internalLayout = "2006-01-02T15:04:05.999999"
)

// FormatTimestamp renders t for a dispatch-facing document: ISO-8601,
// millisecond precision, literal "Z" suffix.
func FormatTimestamp(t time.Time) string {
	return t.Format(dispatchLayout) + "Z"
}

// FormatInternal renders t for internally-consumed files: full microsecond
// precision, no suffix.
func FormatInternal(t time.Time) string {
	return t.Format(internalLayout)
}

// ParseTimestamp parses either convention, with or without fractional
// seconds or the trailing Z.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSuffix(s, "Z")
	for _, layout := range []string{internalLayout, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// normalizeTimestamps returns a deep copy of v with every time.Time value
// replaced by its dispatch-facing string form, so encoding/json renders the
// fixed convention regardless of where the value is nested.
func normalizeTimestamps(v any) any {
	switch val := v.(type) {
	case time.Time:
		return FormatTimestamp(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeTimestamps(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeTimestamps(item)
		}
		return out
	default:
		return v
	}
}
