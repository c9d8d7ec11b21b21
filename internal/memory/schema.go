package memory

import (
	"fmt"
)

// Schema is the JSON-Schema subset spec §4.A/§4.C recognizes: type,
// required, properties, items. Validation fails closed — an unrecognised
// shape is rejected, not passed through.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

// Validate checks v against the schema, returning the first violation
// found (nil if it matches).
func Validate(schema *Schema, v interface{}) error {
	if schema == nil {
		return nil
	}
	return validateValue(schema, v, "$")
}

func validateValue(schema *Schema, v interface{}, path string) error {
	if schema.Type != "" {
		if err := checkType(schema.Type, v, path); err != nil {
			return err
		}
	}

	switch schema.Type {
	case "object", "":
		obj, ok := v.(map[string]interface{})
		if !ok {
			if schema.Type == "object" {
				return fmt.Errorf("%s: expected object", path)
			}
			return nil
		}
		for _, req := range schema.Required {
			if _, present := obj[req]; !present {
				return fmt.Errorf("%s: missing required property %q", path, req)
			}
		}
		for name, propSchema := range schema.Properties {
			val, present := obj[name]
			if !present {
				continue
			}
			if err := validateValue(propSchema, val, path+"."+name); err != nil {
				return err
			}
		}
	case "array":
		arr, ok := v.([]interface{})
		if !ok {
			return fmt.Errorf("%s: expected array", path)
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkType(t string, v interface{}, path string) error {
	if v == nil {
		return nil // absence is governed by `required`, not `type`
	}
	ok := false
	switch t {
	case "object":
		_, ok = v.(map[string]interface{})
	case "array":
		_, ok = v.([]interface{})
	case "string":
		_, ok = v.(string)
	case "number":
		_, ok = v.(float64)
	case "integer":
		f, isNum := v.(float64)
		ok = isNum && f == float64(int64(f))
	case "boolean":
		_, ok = v.(bool)
	default:
		ok = true // unrecognised type keyword is not enforced
	}
	if !ok {
		return fmt.Errorf("%s: expected type %q", path, t)
	}
	return nil
}
