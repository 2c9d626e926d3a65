package form

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrFieldNotFound is returned when editing a field name that does not exist.
var ErrFieldNotFound = errors.New("field not found")

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// CheckField verifies a single field definition supplied by a direct edit.
// Direct edits bypass the revision engine, so they enforce the same shape
// rules the validator applies to model output.
func CheckField(f Field) error {
	if !namePattern.MatchString(f.Name) {
		return fmt.Errorf("field name must be a snake_case token: %q", f.Name)
	}
	if f.Label == "" {
		return fmt.Errorf("field '%s' requires a label", f.Name)
	}
	if !KnownType(f.Type) {
		return fmt.Errorf("invalid field type: %s", f.Type)
	}
	if NeedsOptions(f.Type) && len(f.Options) == 0 {
		return fmt.Errorf("field '%s' requires 'options'", f.Name)
	}
	if NeedsOptions(f.Type) {
		values := make(map[string]bool)
		for _, opt := range f.Options {
			if values[opt.Value] {
				return fmt.Errorf("field '%s' has duplicate option value: %s", f.Name, opt.Value)
			}
			values[opt.Value] = true
		}
	}
	if f.Type == TypeSection {
		seen := make(map[string]bool)
		seen[f.Name] = true
		if err := checkNested(f.Fields, seen); err != nil {
			return err
		}
	}
	return nil
}

// Check verifies a complete form supplied by a caller: every field
// definition plus global name uniqueness across nesting levels.
func Check(f Form) error {
	for _, fld := range f.Fields {
		if err := CheckField(fld); err != nil {
			return err
		}
	}
	seen := make(map[string]bool)
	for _, n := range f.Names() {
		if seen[n] {
			return fmt.Errorf("duplicate field name: %s", n)
		}
		seen[n] = true
	}
	return nil
}

func checkNested(fields []Field, seen map[string]bool) error {
	for _, fld := range fields {
		if err := CheckField(fld); err != nil {
			return err
		}
		if seen[fld.Name] {
			return fmt.Errorf("duplicate field name: %s", fld.Name)
		}
		seen[fld.Name] = true
		if fld.Type == TypeSection {
			if err := checkNested(fld.Fields, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// Put replaces the field named name in place, or appends a new top-level
// field when no field carries that name. The replacement keeps the original
// display position; identity is the name, so def.Name must equal name.
func (f *Form) Put(name string, def Field) error {
	if def.Name != name {
		return fmt.Errorf("field name mismatch: %q vs %q", name, def.Name)
	}
	if err := CheckField(def); err != nil {
		return err
	}

	next := f.Clone()
	if replaceField(next.Fields, name, def) {
		if ok, reason := Validate(wireObject(next)); !ok {
			return errors.New(reason)
		}
		*f = next
		return nil
	}

	next.Fields = append(next.Fields, def)
	if ok, reason := Validate(wireObject(next)); !ok {
		return errors.New(reason)
	}
	*f = next
	return nil
}

func replaceField(fields []Field, name string, def Field) bool {
	for i := range fields {
		if fields[i].Name == name {
			fields[i] = def
			return true
		}
		if fields[i].Type == TypeSection && replaceField(fields[i].Fields, name, def) {
			return true
		}
	}
	return false
}

// Delete removes the field named name wherever it sits, sections included.
func (f *Form) Delete(name string) error {
	fields, removed := deleteField(f.Fields, name)
	if !removed {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	f.Fields = fields
	return nil
}

func deleteField(fields []Field, name string) ([]Field, bool) {
	for i := range fields {
		if fields[i].Name == name {
			return append(fields[:i:i], fields[i+1:]...), true
		}
		if fields[i].Type == TypeSection {
			if nested, ok := deleteField(fields[i].Fields, name); ok {
				fields[i].Fields = nested
				return fields, true
			}
		}
	}
	return fields, false
}

// wireObject renders a form into the untyped shape Validate expects, reusing
// the single validation path for direct edits.
func wireObject(f Form) map[string]any {
	return map[string]any{
		"message":   "direct edit",
		"form_data": toAny(f),
	}
}

func toAny(f Form) map[string]any {
	fields := make([]any, 0, len(f.Fields))
	for _, fld := range f.Fields {
		fields = append(fields, fieldToAny(fld))
	}
	return map[string]any{"fields": fields}
}

func fieldToAny(fld Field) map[string]any {
	m := map[string]any{
		"name":     fld.Name,
		"label":    fld.Label,
		"type":     string(fld.Type),
		"required": fld.Required,
	}
	if len(fld.Options) > 0 {
		opts := make([]any, 0, len(fld.Options))
		for _, o := range fld.Options {
			opts = append(opts, map[string]any{"value": o.Value, "label": o.Label})
		}
		m["options"] = opts
	}
	if fld.Type == TypeSection {
		nested := make([]any, 0, len(fld.Fields))
		for _, sub := range fld.Fields {
			nested = append(nested, fieldToAny(sub))
		}
		m["fields"] = nested
	}
	return m
}
