package catalog

import "sort"

// Field names a writable column of the product record
type Field string

// Product fields
const (
	FieldTitle      Field = "title"
	FieldSlug       Field = "slug"
	FieldPrice      Field = "price"
	FieldStock      Field = "stock"
	FieldExternalID Field = "external_id"
	FieldImages     Field = "images"
	FieldVideoURL   Field = "video_url"
	FieldCategory   Field = "category_id"
	FieldSyncedAt   Field = "synced_at"
)

// OptionalFields are the fields a catalog store may or may not carry
var OptionalFields = []Field{FieldImages, FieldVideoURL}

// Capabilities describes which optional fields a catalog store supports.
// Writes to unsupported fields are skipped silently.
type Capabilities struct {
	fields map[Field]struct{}
}

// NewCapabilities returns a descriptor supporting exactly fields
func NewCapabilities(fields ...Field) Capabilities {
	c := Capabilities{fields: make(map[Field]struct{}, len(fields))}
	for _, f := range fields {
		c.fields[f] = struct{}{}
	}
	return c
}

// AllCapabilities supports every optional field
func AllCapabilities() Capabilities {
	return NewCapabilities(OptionalFields...)
}

// Supports reports whether f can be written
func (c Capabilities) Supports(f Field) bool {
	_, ok := c.fields[f]
	return ok
}

// Fields returns the supported fields in name order
func (c Capabilities) Fields() []Field {
	out := make([]Field, 0, len(c.fields))
	for f := range c.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NoOptionalFields describes a store that carries only the core columns
func NoOptionalFields() Capabilities {
	return NewCapabilities()
}
