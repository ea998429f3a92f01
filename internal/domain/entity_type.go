package domain

import (
	"fmt"
	"sort"
	"sync"
)

// FieldFormat controls how an extracted value is rendered into an attribute
type FieldFormat string

const (
	FormatText   FieldFormat = "text"
	FormatDate   FieldFormat = "date"
	FormatBool   FieldFormat = "bool"
	FormatURL    FieldFormat = "url"
	FormatNumber FieldFormat = "number"
)

// AttributeRule extracts one attribute using a fallback chain of remote field
// names. The first field with content wins.
type AttributeRule struct {
	Name     string      `mapstructure:"name"`
	Fields   []string    `mapstructure:"fields"`
	Required bool        `mapstructure:"required"`
	Format   FieldFormat `mapstructure:"format"`
}

// MediaSlot declares a media attachment point and the fields carrying its URL
type MediaSlot struct {
	Name   string   `mapstructure:"name"`
	Fields []string `mapstructure:"fields"`
}

// Reference links an attribute to another entity type by attribute value
type Reference struct {
	Attribute       string `mapstructure:"attribute"`
	TargetType      string `mapstructure:"target_type"`
	TargetAttribute string `mapstructure:"target_attribute"`
}

// TypeSpec describes how one remote list maps onto local entities
type TypeSpec struct {
	Name       string          `mapstructure:"name"`
	ListName   string          `mapstructure:"list"`
	IDFields   []string        `mapstructure:"id_fields"`
	Attributes []AttributeRule `mapstructure:"attributes"`
	Media      []MediaSlot     `mapstructure:"media"`
	References []Reference     `mapstructure:"references"`
}

// Validate checks the spec for structural problems
func (t *TypeSpec) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("entity type name is required")
	}
	if t.ListName == "" {
		return fmt.Errorf("entity type %s: list is required", t.Name)
	}
	seen := make(map[string]bool)
	for _, a := range t.Attributes {
		if a.Name == "" {
			return fmt.Errorf("entity type %s: attribute without name", t.Name)
		}
		if len(a.Fields) == 0 {
			return fmt.Errorf("entity type %s: attribute %s has no fields", t.Name, a.Name)
		}
		if seen[a.Name] {
			return fmt.Errorf("entity type %s: duplicate attribute %s", t.Name, a.Name)
		}
		seen[a.Name] = true
		switch a.Format {
		case "", FormatText, FormatDate, FormatBool, FormatURL, FormatNumber:
		default:
			return fmt.Errorf("entity type %s: attribute %s has invalid format %q", t.Name, a.Name, a.Format)
		}
	}
	for _, m := range t.Media {
		if m.Name == "" || len(m.Fields) == 0 {
			return fmt.Errorf("entity type %s: media slot needs a name and fields", t.Name)
		}
	}
	for _, r := range t.References {
		if !seen[r.Attribute] {
			return fmt.Errorf("entity type %s: reference on unknown attribute %s", t.Name, r.Attribute)
		}
		if r.TargetType == "" || r.TargetAttribute == "" {
			return fmt.Errorf("entity type %s: reference %s needs a target", t.Name, r.Attribute)
		}
	}
	return nil
}

// ProjectedFields returns every remote field name the spec reads, in
// declaration order without duplicates.
func (t *TypeSpec) ProjectedFields() []string {
	var fields []string
	seen := make(map[string]bool)
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				fields = append(fields, n)
			}
		}
	}
	add(t.IDFields)
	for _, a := range t.Attributes {
		add(a.Fields)
	}
	for _, m := range t.Media {
		add(m.Fields)
	}
	return fields
}

// TypeRegistry holds the active entity type specs. It is replaced wholesale
// when configuration is reloaded.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]TypeSpec
}

// NewTypeRegistry creates a registry from the given specs
func NewTypeRegistry(specs []TypeSpec) (*TypeRegistry, error) {
	r := &TypeRegistry{}
	if err := r.Replace(specs); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates and swaps in a new set of specs
func (r *TypeRegistry) Replace(specs []TypeSpec) error {
	types := make(map[string]TypeSpec, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := types[s.Name]; dup {
			return fmt.Errorf("duplicate entity type %s", s.Name)
		}
		types[s.Name] = s
	}
	r.mu.Lock()
	r.types = types
	r.mu.Unlock()
	return nil
}

// Get returns the spec for an entity type
func (r *TypeRegistry) Get(name string) (TypeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.types[name]
	if !ok {
		return TypeSpec{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, name)
	}
	return spec, nil
}

// Names returns the registered type names sorted
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
