package response

import (
	"testing"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

func TestNewRequiresIdentifier(t *testing.T) {
	if _, err := New(map[string]any{"type": "Feature"}); err == nil {
		t.Fatal("expected error for document without identifier")
	}

	d, err := New(map[string]any{
		"type":       "Feature",
		"properties": map[string]any{"identifier": "e1"},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if d.Identifier() != "e1" {
		t.Errorf("identifier = %q", d.Identifier())
	}
	if d.indicators() == nil {
		t.Error("indicator list should be created")
	}
}

func TestUpdateAppendsThenMerges(t *testing.T) {
	d := NewForEntity("e1")

	d.Update("feasibilityControlMetric", Fragment{"value": true, "mission": "Sentinel-2"})
	section := d.Get("feasibilityControlMetric")
	if section == nil {
		t.Fatal("section not appended")
	}
	if section["isMeasurementOf"] != MeasurementURI("feasibilityControlMetric") {
		t.Errorf("isMeasurementOf = %v", section["isMeasurementOf"])
	}

	// Second update merges in place, not a second section.
	d.Update("feasibilityControlMetric", Fragment{"value": false})
	if len(d.indicators()) != 1 {
		t.Fatalf("expected 1 section, got %d", len(d.indicators()))
	}
	if v, _ := d.Value("feasibilityControlMetric"); v != false {
		t.Errorf("value = %v", v)
	}
	if section["mission"] != "Sentinel-2" {
		t.Error("merge dropped existing key")
	}

	// A second tag is a second section.
	d.Update("deliveryControlMetric", Fragment{"value": true})
	if len(d.indicators()) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(d.indicators()))
	}
}

func TestGetUnknownTag(t *testing.T) {
	d := NewForEntity("e1")
	if d.Get("nope") != nil {
		t.Error("expected nil section for unknown tag")
	}
	if _, ok := d.Value("nope"); ok {
		t.Error("expected no value for unknown tag")
	}
}

func TestStatusUnsetUntilFirstStage(t *testing.T) {
	d := NewForEntity("e1")
	if _, ok := d.Status(); ok {
		t.Error("fresh document should have no status")
	}
	d.SetStatus(ledger.StatusAdded)
	st, ok := d.Status()
	if !ok || st != ledger.StatusAdded {
		t.Errorf("status = %v ok=%v", st, ok)
	}
}
