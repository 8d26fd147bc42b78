package response

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

// MeasurementPrefix is the namespace for measurement identifiers; a stage's
// tag is the fragment after '#'.
const MeasurementPrefix = "http://orbitqc.io/quality-indicators"

// Lineage is the default lineage attribute stamped on every measurement
// that does not set its own.
const Lineage = "http://orbitqc.io/engine_v2"

// Fragment is the partial measurement a stage produces for one entity:
// a value flag plus free-form attributes.
type Fragment map[string]any

// MeasurementURI builds the full identifier for a measurement tag.
func MeasurementURI(tag string) string {
	return MeasurementPrefix + "#" + tag
}

// Document is the per-entity metadata accumulator: an ordered sequence of
// measurement sections, each addressed by its measurement tag, plus the
// entity's current status for this job.
type Document struct {
	content map[string]any

	status    ledger.Status
	statusSet bool
}

// New wraps raw document content. The content must carry the entity
// identifier; the measurement section list is created when absent.
func New(content map[string]any) (*Document, error) {
	d := &Document{content: content}
	if d.Identifier() == "" {
		return nil, fmt.Errorf("document has no properties.identifier")
	}
	if d.indicators() == nil {
		props := d.properties()
		product, _ := props["productInformation"].(map[string]any)
		if product == nil {
			product = make(map[string]any)
			props["productInformation"] = product
		}
		quality, _ := product["qualityInformation"].(map[string]any)
		if quality == nil {
			quality = make(map[string]any)
			product["qualityInformation"] = quality
		}
		quality["qualityIndicators"] = []any{}
	}
	return d, nil
}

// NewForEntity builds an empty document skeleton for an entity id.
func NewForEntity(id string) *Document {
	d, _ := New(map[string]any{
		"type": "Feature",
		"properties": map[string]any{
			"identifier": id,
		},
	})
	return d
}

// Content returns the raw document content.
func (d *Document) Content() map[string]any {
	return d.content
}

func (d *Document) properties() map[string]any {
	props, _ := d.content["properties"].(map[string]any)
	return props
}

// Identifier returns the owning entity's id.
func (d *Document) Identifier() string {
	props := d.properties()
	if props == nil {
		return ""
	}
	id, _ := props["identifier"].(string)
	return id
}

func (d *Document) indicators() []any {
	props := d.properties()
	if props == nil {
		return nil
	}
	product, _ := props["productInformation"].(map[string]any)
	if product == nil {
		return nil
	}
	quality, _ := product["qualityInformation"].(map[string]any)
	if quality == nil {
		return nil
	}
	list, _ := quality["qualityIndicators"].([]any)
	return list
}

func (d *Document) setIndicators(list []any) {
	product := d.properties()["productInformation"].(map[string]any)
	product["qualityInformation"].(map[string]any)["qualityIndicators"] = list
}

// Status returns the entity's current status; ok is false until a stage
// sets it for this job.
func (d *Document) Status() (ledger.Status, bool) {
	return d.status, d.statusSet
}

// SetStatus sets the entity's status for this job.
func (d *Document) SetStatus(s ledger.Status) {
	d.status = s
	d.statusSet = true
}

// Get returns the measurement section addressed by tag, or nil when the
// document does not carry it. Section identifiers are matched on the
// fragment after '#'.
func (d *Document) Get(tag string) map[string]any {
	for _, item := range d.indicators() {
		section, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uri, _ := section["isMeasurementOf"].(string)
		if uri == "" {
			continue
		}
		if uri[strings.Index(uri, "#")+1:] == tag {
			return section
		}
	}
	return nil
}

// Update merges frag into the section addressed by tag: update-in-place
// when the section exists, append otherwise.
func (d *Document) Update(tag string, frag Fragment) {
	if section := d.Get(tag); section != nil {
		for k, v := range frag {
			section[k] = v
		}
		return
	}
	section := make(map[string]any, len(frag)+1)
	for k, v := range frag {
		section[k] = v
	}
	if _, ok := section["isMeasurementOf"]; !ok {
		section["isMeasurementOf"] = MeasurementURI(tag)
	}
	d.setIndicators(append(d.indicators(), section))
}

// Value returns the value flag of the section addressed by tag.
func (d *Document) Value(tag string) (any, bool) {
	section := d.Get(tag)
	if section == nil {
		return nil, false
	}
	v, ok := section["value"]
	return v, ok
}

// SetValue sets the value flag of the section addressed by tag.
func (d *Document) SetValue(tag string, value any) {
	if section := d.Get(tag); section != nil {
		section["value"] = value
	}
}
