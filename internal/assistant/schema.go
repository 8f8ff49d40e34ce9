package assistant

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ObjectSchema builds a JSON Schema object from named properties. Names
// listed in required must be present in every call.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty declares a free-form string argument.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// StringEnumProperty declares a string argument restricted to the given values.
func StringEnumProperty(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

// IntegerProperty declares a whole-number argument.
func IntegerProperty(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// NumberProperty declares a numeric argument.
func NumberProperty(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

// BooleanProperty declares a true/false argument.
func BooleanProperty(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// validateArgs checks raw call arguments against a tool schema: required
// properties must be present, undeclared properties are rejected, and
// primitive types and enum membership are enforced. Models retry from the
// returned message, so it names the offending argument.
func validateArgs(schema map[string]any, raw json.RawMessage) error {
	args := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}

	for _, name := range requiredNames(schema) {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		property, ok := properties[name].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown argument %q", name)
		}
		if err := checkProperty(name, property, args[name]); err != nil {
			return err
		}
	}
	return nil
}

func checkProperty(name string, property map[string]any, value any) error {
	switch property["type"] {
	case "string":
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("argument %q must be a string", name)
		}
		return checkEnum(name, property, text)
	case "integer":
		// JSON numbers decode as float64.
		number, ok := value.(float64)
		if !ok || number != math.Trunc(number) {
			return fmt.Errorf("argument %q must be an integer", name)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("argument %q must be a number", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	}
	return nil
}

func checkEnum(name string, property map[string]any, value string) error {
	values, ok := property["enum"].([]string)
	if !ok || len(values) == 0 {
		return nil
	}
	for _, allowed := range values {
		if value == allowed {
			return nil
		}
	}
	return fmt.Errorf("argument %q must be one of %v", name, values)
}

func requiredNames(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		names := make([]string, 0, len(required))
		for _, entry := range required {
			if name, ok := entry.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}
