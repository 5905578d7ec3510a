package command

import (
	"errors"
	"strings"
)

// ErrFieldNotFound is returned by UpdateField when no field matches the
// requested name; the field list is left untouched.
var ErrFieldNotFound = errors.New("no such form field")

// Lookup returns the index of the field with the given name, matching
// case-insensitively. Duplicate names are allowed in the list; the last
// entry shadows earlier ones, so the scan runs back to front.
func (f *FormData) Lookup(name string) (int, bool) {
	for i := len(f.Fields) - 1; i >= 0; i-- {
		if strings.EqualFold(f.Fields[i].Name, name) {
			return i, true
		}
	}
	return -1, false
}

// UpdateField replaces the value of an existing field. An existing selector
// is preserved; a field without one gets the synthesized default. The list
// is not mutated when the name does not match.
func (f *FormData) UpdateField(name, value string) error {
	i, ok := f.Lookup(name)
	if !ok {
		return ErrFieldNotFound
	}
	f.Fields[i].Value = value
	if f.Fields[i].Selector == "" {
		f.Fields[i].Selector = SynthesizeSelector(f.Fields[i].Name)
	}
	return nil
}

// CreateField appends a new field with the synthesized selector. A duplicate
// name is not an error: the new entry shadows the old one at lookup time.
func (f *FormData) CreateField(name, value string) {
	f.Fields = append(f.Fields, FormField{
		Name:     name,
		Value:    value,
		Selector: SynthesizeSelector(name),
	})
}
