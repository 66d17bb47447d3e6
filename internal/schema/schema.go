// Package schema holds the field catalog a rule tree is checked
// against: every field the authoring GUI exposes, with its type tag.
package schema

import (
	"fmt"
	"sort"

	"github.com/ruletree/ruletree/internal/tree"
)

// Field describes one queryable field.
type Field struct {
	Name  string
	Type  tree.TypeTag
	Label string // display name, optional
}

// Schema is the set of known fields. It is populated once at startup
// and read-only afterwards, so concurrent lookups need no locking.
type Schema struct {
	fields map[string]Field
}

// New creates a schema from the given fields. Duplicate names are an
// error so catalogs cannot silently shadow each other.
func New(fields ...Field) (*Schema, error) {
	s := &Schema{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if err := s.add(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is New for static catalogs in tests and fixtures.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(f Field) error {
	if f.Name == "" {
		return fmt.Errorf("schema field needs a name")
	}
	if f.Type == tree.TypeUnspecified {
		return fmt.Errorf("schema field %q needs a type", f.Name)
	}
	if _, exists := s.fields[f.Name]; exists {
		return fmt.Errorf("schema field %q registered twice", f.Name)
	}
	s.fields[f.Name] = f
	return nil
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Has reports whether the field exists.
func (s *Schema) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// TypeOf returns the field's type tag, or TypeUnspecified when the
// field is unknown.
func (s *Schema) TypeOf(name string) tree.TypeTag {
	if f, ok := s.fields[name]; ok {
		return f.Type
	}
	return tree.TypeUnspecified
}

// Names returns all field names in sorted order.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of fields in the catalog.
func (s *Schema) Len() int {
	return len(s.fields)
}
