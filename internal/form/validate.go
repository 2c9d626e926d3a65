package form

import "fmt"

// Validate checks the structural well-formedness of a candidate revision
// response before it is decoded into the typed model. It is total: any
// malformed input, including nil, yields ok=false with a reason rather than
// a panic. Field names must be unique globally, including inside nested
// sections.
func Validate(raw map[string]any) (bool, string) {
	if raw == nil {
		return false, "empty response object"
	}
	if _, ok := raw["message"].(string); !ok {
		return false, "missing 'message' in response"
	}
	formData, ok := raw["form_data"].(map[string]any)
	if !ok {
		return false, "missing 'form_data' in response"
	}
	fields, ok := formData["fields"].([]any)
	if !ok {
		return false, "missing 'fields' in form_data"
	}

	seen := make(map[string]bool)
	return validateFields(fields, seen)
}

func validateFields(fields []any, seen map[string]bool) (bool, string) {
	for _, item := range fields {
		field, ok := item.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("field is not an object: %v", item)
		}

		name, ok := field["name"].(string)
		if !ok || name == "" {
			return false, fmt.Sprintf("field missing required keys: %v", field)
		}
		if _, ok := field["label"].(string); !ok {
			return false, fmt.Sprintf("field '%s' missing 'label'", name)
		}
		typ, ok := field["type"].(string)
		if !ok {
			return false, fmt.Sprintf("field '%s' missing 'type'", name)
		}
		if _, ok := field["required"].(bool); !ok {
			return false, fmt.Sprintf("field '%s' missing 'required'", name)
		}

		if !KnownType(FieldType(typ)) {
			return false, fmt.Sprintf("invalid field type: %s", typ)
		}

		if NeedsOptions(FieldType(typ)) {
			if ok, reason := validateOptions(name, field["options"]); !ok {
				return false, reason
			}
		}

		if seen[name] {
			return false, fmt.Sprintf("duplicate field name: %s", name)
		}
		seen[name] = true

		if FieldType(typ) == TypeSection {
			nested, ok := field["fields"].([]any)
			if !ok {
				return false, fmt.Sprintf("section '%s' requires nested 'fields'", name)
			}
			if ok, reason := validateFields(nested, seen); !ok {
				return false, reason
			}
		}
	}
	return true, ""
}

func validateOptions(fieldName string, raw any) (bool, string) {
	options, ok := raw.([]any)
	if !ok || len(options) == 0 {
		return false, fmt.Sprintf("field '%s' requires 'options'", fieldName)
	}
	values := make(map[string]bool)
	for _, item := range options {
		opt, ok := item.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("field '%s' has a non-object option", fieldName)
		}
		value, ok := opt["value"].(string)
		if !ok {
			return false, fmt.Sprintf("field '%s' has an option without 'value'", fieldName)
		}
		if _, ok := opt["label"].(string); !ok {
			return false, fmt.Sprintf("field '%s' has an option without 'label'", fieldName)
		}
		if values[value] {
			return false, fmt.Sprintf("field '%s' has duplicate option value: %s", fieldName, value)
		}
		values[value] = true
	}
	return true, ""
}
