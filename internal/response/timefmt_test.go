package response

import (
	"testing"
	"time"
)

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589_123_000, time.UTC)
	if got := FormatTimestamp(ts); got != "2026-03-14T09:26:53.589Z" {
		t.Errorf("FormatTimestamp = %q", got)
	}
	if got := FormatInternal(ts); got != "2026-03-14T09:26:53.589123" {
		t.Errorf("FormatInternal = %q", got)
	}
}

func TestParseTimestampBothConventions(t *testing.T) {
	for _, s := range []string{
		"2026-03-14T09:26:53.589Z",
		"2026-03-14T09:26:53.589123",
		"2026-03-14T09:26:53",
	} {
		ts, err := ParseTimestamp(s)
		if err != nil {
			t.Errorf("parse %q: %v", s, err)
			continue
		}
		if ts.Year() != 2026 || ts.Second() != 53 {
			t.Errorf("parse %q = %v", s, ts)
		}
	}

	if _, err := ParseTimestamp("14/03/2026"); err == nil {
		t.Error("expected error for unrecognized format")
	}
}

func TestNormalizeTimestampsNested(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	in := map[string]any{
		"a": ts,
		"b": []any{ts, "plain"},
		"c": map[string]any{"d": ts},
	}
	out := normalizeTimestamps(in).(map[string]any)

	if out["a"] != "2026-03-14T09:26:53.000Z" {
		t.Errorf("a = %v", out["a"])
	}
	if out["b"].([]any)[0] != "2026-03-14T09:26:53.000Z" {
		t.Errorf("b[0] = %v", out["b"].([]any)[0])
	}
	if out["c"].(map[string]any)["d"] != "2026-03-14T09:26:53.000Z" {
		t.Errorf("c.d = %v", out["c"])
	}
	// The input is not mutated.
	if _, ok := in["a"].(time.Time); !ok {
		t.Error("normalization mutated its input")
	}
}
