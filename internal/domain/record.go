package domain

import (
	"sort"
	"time"
)

// ExternalRecord is one list item as returned by the remote source
type ExternalRecord struct {
	ID       string
	Fields   map[string]Value
	Modified *time.Time
}

// Field returns the named field and whether it carries content
func (r *ExternalRecord) Field(name string) (Value, bool) {
	if r == nil || r.Fields == nil {
		return Value{}, false
	}
	v, ok := r.Fields[name]
	if !ok || v.IsEmpty() {
		return Value{}, false
	}
	return v, true
}

// FieldNames returns the sorted keys present on the record
func (r *ExternalRecord) FieldNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
