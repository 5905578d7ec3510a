package command

import (
	"errors"
	"reflect"
	"testing"
)

func TestFormData_UpdateField(t *testing.T) {
	form := FormData{
		URL: "https://example.com/signup",
		Fields: []FormField{
			{Name: "email", Value: "a@a.com", Selector: "#signup-email"},
			{Name: "city", Value: "Austin"},
		},
	}

	if err := form.UpdateField("Email", "b@b.com"); err != nil {
		t.Fatalf("update existing field: %v", err)
	}
	if form.Fields[0].Value != "b@b.com" {
		t.Fatalf("value = %q, want %q", form.Fields[0].Value, "b@b.com")
	}
	// An explicit selector from analysis survives the update.
	if form.Fields[0].Selector != "#signup-email" {
		t.Fatalf("selector = %q, want preserved %q", form.Fields[0].Selector, "#signup-email")
	}

	// A field without a selector gets the synthesized default.
	if err := form.UpdateField("city", "Dallas"); err != nil {
		t.Fatalf("update city: %v", err)
	}
	if form.Fields[1].Selector != SynthesizeSelector("city") {
		t.Fatalf("selector = %q, want synthesized", form.Fields[1].Selector)
	}
}

func TestFormData_UpdateMissingFieldDoesNotMutate(t *testing.T) {
	form := FormData{Fields: []FormField{{Name: "email", Value: "a@a.com"}}}
	before := make([]FormField, len(form.Fields))
	copy(before, form.Fields)

	err := form.UpdateField("phone", "555-0100")
	if !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("err = %v, want ErrFieldNotFound", err)
	}
	if !reflect.DeepEqual(form.Fields, before) {
		t.Fatalf("field list mutated on not-found: %+v", form.Fields)
	}
}

func TestFormData_DuplicateNamesShadowAtLookup(t *testing.T) {
	form := FormData{Fields: []FormField{{Name: "email", Value: "first"}}}
	form.CreateField("email", "second")

	if len(form.Fields) != 2 {
		t.Fatalf("duplicate create must append, got %d fields", len(form.Fields))
	}
	i, ok := form.Lookup("EMAIL")
	if !ok || i != 1 {
		t.Fatalf("Lookup = (%d, %v), want later entry to shadow", i, ok)
	}

	// Updating touches the shadowing entry only.
	if err := form.UpdateField("email", "third"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if form.Fields[0].Value != "first" || form.Fields[1].Value != "third" {
		t.Fatalf("unexpected values: %+v", form.Fields)
	}
}

func TestFormData_CreateFieldSynthesizesSelector(t *testing.T) {
	var form FormData
	form.CreateField("nickname", "Johnny")
	if form.Fields[0].Selector != SynthesizeSelector("nickname") {
		t.Fatalf("selector = %q", form.Fields[0].Selector)
	}
}
