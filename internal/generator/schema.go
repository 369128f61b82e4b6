package generator

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Schema is a JSON Schema subset: enough to describe the flat structured
// payloads this service requests and to reject malformed provider output.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty"`
	Description string             `json:"description,omitempty"`
}

// Float returns a pointer to f, for Minimum/Maximum literals.
func Float(f float64) *float64 { return &f }

// Validate checks raw JSON against the schema and returns every violation
// found. A nil return means the payload conforms.
func (s *Schema) Validate(raw json.RawMessage) []string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return []string{fmt.Sprintf("invalid JSON: %v", err)}
	}

	var errs []string
	validateValue(s, value, "", &errs)
	return errs
}

func validateValue(schema *Schema, value any, path string, errs *[]string) {
	if schema == nil {
		return
	}

	if schema.Type != "" && !checkType(schema.Type, value) {
		*errs = append(*errs, fmt.Sprintf("%s: expected type %s, got %T", pathOrRoot(path), schema.Type, value))
		return
	}

	switch schema.Type {
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return
		}
		for _, req := range schema.Required {
			if _, exists := obj[req]; !exists {
				*errs = append(*errs, fmt.Sprintf("%s: missing required field %q", pathOrRoot(path), req))
			}
		}
		for name, propSchema := range schema.Properties {
			if propValue, exists := obj[name]; exists {
				validateValue(propSchema, propValue, joinPath(path, name), errs)
			}
		}
	case "array":
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return
		}
		for i := 0; i < rv.Len(); i++ {
			validateValue(schema.Items, rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i), errs)
		}
	case "number", "integer":
		num, ok := asFloat(value)
		if !ok {
			return
		}
		if schema.Minimum != nil && num < *schema.Minimum {
			*errs = append(*errs, fmt.Sprintf("%s: %v below minimum %v", pathOrRoot(path), num, *schema.Minimum))
		}
		if schema.Maximum != nil && num > *schema.Maximum {
			*errs = append(*errs, fmt.Sprintf("%s: %v above maximum %v", pathOrRoot(path), num, *schema.Maximum))
		}
	}

	if len(schema.Enum) > 0 {
		found := false
		for _, allowed := range schema.Enum {
			if reflect.DeepEqual(allowed, value) {
				found = true
				break
			}
		}
		if !found {
			*errs = append(*errs, fmt.Sprintf("%s: value %v not in enum", pathOrRoot(path), value))
		}
	}
}

func checkType(schemaType string, value any) bool {
	if value == nil {
		return schemaType == "null"
	}

	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := asFloat(value)
		return ok
	case "integer":
		num, ok := asFloat(value)
		return ok && num == float64(int64(num))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		return reflect.ValueOf(value).Kind() == reflect.Slice
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func pathOrRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
