package form

import "encoding/json"

// FieldType enumerates the closed set of supported field types.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeEmail    FieldType = "email"
	TypeDate     FieldType = "date"
	TypeFile     FieldType = "file"
	TypeImage    FieldType = "image"
	TypeRadio    FieldType = "radio"
	TypeDropdown FieldType = "dropdown"
	TypeCheckbox FieldType = "checkbox"
	TypeSection  FieldType = "section"
)

var fieldTypes = map[FieldType]bool{
	TypeText:     true,
	TypeNumber:   true,
	TypeEmail:    true,
	TypeDate:     true,
	TypeFile:     true,
	TypeImage:    true,
	TypeRadio:    true,
	TypeDropdown: true,
	TypeCheckbox: true,
	TypeSection:  true,
}

// KnownType reports whether t is a member of the field type enumeration.
func KnownType(t FieldType) bool {
	return fieldTypes[t]
}

// NeedsOptions reports whether fields of type t must carry a non-empty
// options list.
func NeedsOptions(t FieldType) bool {
	return t == TypeRadio || t == TypeDropdown
}

// Option is one selectable choice of a radio or dropdown field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field is one named, typed element of a Form. Name is the identity key:
// two fields are the same field across revisions iff their names match.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []Option  `json:"options,omitempty"`
	// Fields holds the nested sub-form when Type is "section".
	Fields []Field `json:"fields,omitempty"`
}

// Form is the ordered collection of fields under revision. Field order is
// display order and survives revisions.
type Form struct {
	Fields []Field `json:"fields"`
}

// Empty returns a form with no fields, the state every session starts in.
func Empty() Form {
	return Form{Fields: []Field{}}
}

// Clone returns a deep copy so callers can hold on to a form value while a
// revision is attempted against it.
func (f Form) Clone() Form {
	return Form{Fields: cloneFields(f.Fields)}
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, fld := range fields {
		out[i] = fld
		if len(fld.Options) > 0 {
			out[i].Options = append([]Option(nil), fld.Options...)
		}
		out[i].Fields = cloneFields(fld.Fields)
	}
	return out
}

// Names returns every field name in display order, descending into sections.
func (f Form) Names() []string {
	var names []string
	collectNames(f.Fields, &names)
	return names
}

func collectNames(fields []Field, names *[]string) {
	for _, fld := range fields {
		*names = append(*names, fld.Name)
		if fld.Type == TypeSection {
			collectNames(fld.Fields, names)
		}
	}
}

// DiffNames compares two forms by field name and returns the names added in
// next and the names removed from prev, each in display order.
func DiffNames(prev, next Form) (added, removed []string) {
	prevSet := make(map[string]bool)
	for _, n := range prev.Names() {
		prevSet[n] = true
	}
	nextSet := make(map[string]bool)
	for _, n := range next.Names() {
		nextSet[n] = true
	}
	for _, n := range next.Names() {
		if !prevSet[n] {
			added = append(added, n)
		}
	}
	for _, n := range prev.Names() {
		if !nextSet[n] {
			removed = append(removed, n)
		}
	}
	return added, removed
}

// JSON renders the form as compact JSON, the representation embedded in
// prompts and returned over the wire.
func (f Form) JSON() string {
	data, err := json.Marshal(f)
	if err != nil {
		return `{"fields":[]}`
	}
	return string(data)
}

// IndentedJSON renders the form for terminal display.
func (f Form) IndentedJSON() string {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return `{"fields": []}`
	}
	return string(data)
}

// Revision is the validated outcome of one revision turn: the assistant's
// summary plus the complete replacement form.
type Revision struct {
	Message string `json:"message"`
	Form    Form   `json:"form_data"`
}

// DecodeRevision converts an already-validated response object into the
// typed model. It is the only place untyped maps cross into typed values.
func DecodeRevision(raw map[string]any) (Revision, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Revision{}, err
	}
	var rev Revision
	if err := json.Unmarshal(data, &rev); err != nil {
		return Revision{}, err
	}
	if rev.Form.Fields == nil {
		rev.Form.Fields = []Field{}
	}
	return rev, nil
}
