package record

import (
	"encoding/json"
	"sort"
)

type kind uint8

const (
	kindNull kind = iota
	kindNumber
	kindText
)

// Value is a single field value: null, a number or a piece of text.
type Value struct {
	kind kind
	num  float64
	text string
}

// Num returns a numeric value.
func Num(f float64) Value { return Value{kind: kindNumber, num: f} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Null returns the null value.
func Null() Value { return Value{} }

// IsNull reports whether v carries no data.
func (v Value) IsNull() bool { return v.kind == kindNull }

// Float returns the numeric payload.
func (v Value) Float() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text payload.
func (v Value) Str() (string, bool) {
	if v.kind != kindText {
		return "", false
	}
	return v.text, true
}

// Interface returns the value as nil, float64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindText:
		return v.text
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Record maps canonical fields to values. Each field may also carry a
// provenance tag naming the calculation or feed that produced it.
type Record struct {
	values map[Field]Value
	tags   map[Field]string
}

// New creates an empty record.
func New() *Record {
	return &Record{
		values: make(map[Field]Value),
		tags:   make(map[Field]string),
	}
}

// Set stores v under f.
func (r *Record) Set(f Field, v Value) {
	r.values[f] = v
}

// SetFloat stores a number under f.
func (r *Record) SetFloat(f Field, x float64) {
	r.values[f] = Num(x)
}

// SetText stores text under f. Empty strings are stored as null.
func (r *Record) SetText(f Field, s string) {
	if s == "" {
		r.values[f] = Null()
		return
	}
	r.values[f] = Text(s)
}

// SetNull marks f as present but empty.
func (r *Record) SetNull(f Field) {
	r.values[f] = Null()
}

// Delete removes f and its tag.
func (r *Record) Delete(f Field) {
	delete(r.values, f)
	delete(r.tags, f)
}

// Get returns the value for f and whether the field is present at all.
func (r *Record) Get(f Field) (Value, bool) {
	v, ok := r.values[f]
	return v, ok
}

// Has reports whether f is present, null or not.
func (r *Record) Has(f Field) bool {
	_, ok := r.values[f]
	return ok
}

// NonNull reports whether f is present with data.
func (r *Record) NonNull(f Field) bool {
	v, ok := r.values[f]
	return ok && !v.IsNull()
}

// Float returns the numeric value of f.
func (r *Record) Float(f Field) (float64, bool) {
	v, ok := r.values[f]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Text returns the text value of f.
func (r *Record) Text(f Field) (string, bool) {
	v, ok := r.values[f]
	if !ok {
		return "", false
	}
	return v.Str()
}

// SetTag records the provenance tag of f. A later call for the same field
// replaces the earlier tag.
func (r *Record) SetTag(f Field, tag string) {
	if tag == "" {
		delete(r.tags, f)
		return
	}
	r.tags[f] = tag
}

// Tag returns the provenance tag of f.
func (r *Record) Tag(f Field) (string, bool) {
	t, ok := r.tags[f]
	return t, ok
}

// Tags returns a copy of the provenance side-map.
func (r *Record) Tags() map[Field]string {
	out := make(map[Field]string, len(r.tags))
	for k, v := range r.tags {
		out[k] = v
	}
	return out
}

// Fields returns the present fields in sorted order.
func (r *Record) Fields() []Field {
	fields := make([]Field, 0, len(r.values))
	for f := range r.values {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Len returns the number of present fields, nulls included.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.values)
}

// CountNonNull returns the number of fields carrying data.
func (r *Record) CountNonNull() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, v := range r.values {
		if !v.IsNull() {
			n++
		}
	}
	return n
}

// Empty reports whether the record has no fields.
func (r *Record) Empty() bool {
	return r.Len() == 0
}

// HasData reports whether at least one field carries data.
func (r *Record) HasData() bool {
	return r.CountNonNull() > 0
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := New()
	for k, v := range r.values {
		out.values[k] = v
	}
	for k, v := range r.tags {
		out.tags[k] = v
	}
	return out
}

// Map returns the values as a plain map keyed by field name.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[string(k)] = v.Interface()
	}
	return out
}
