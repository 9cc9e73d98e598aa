// Package schema validates tool parameters against per-tool declared shapes.
//
// Validation is pure: it never touches the network or mutates shared state,
// and it reports every failing field in one pass so a caller can fix all of
// them in a single round-trip.
package schema

import (
	"fmt"
	"math"
	"regexp"

	gwerrors "concord/internal/errors"
)

// FieldType enumerates the JSON primitive types a field can declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// snowflakePattern matches Discord's numeric resource identifiers.
var snowflakePattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// Field declares one parameter of a tool.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string

	// Constraints, all optional.
	Pattern *regexp.Regexp // string fields
	Enum    []string       // string fields
	MaxLen  int            // string fields, 0 means unbounded
	Min     *float64       // numeric fields
	Max     *float64       // numeric fields
}

// Object is an ordered, closed set of fields. Unknown extra parameters are
// rejected so a typo never silently becomes a no-op.
type Object struct {
	Fields []Field
}

// Validate checks raw against the declared fields and returns a copy holding
// only declared parameters. All field problems are aggregated into a single
// ValidationError.
func (o Object) Validate(tool string, raw map[string]any) (map[string]any, error) {
	var fieldErrs []gwerrors.FieldError
	declared := make(map[string]Field, len(o.Fields))
	for _, f := range o.Fields {
		declared[f.Name] = f
	}

	for name := range raw {
		if _, ok := declared[name]; !ok {
			fieldErrs = append(fieldErrs, gwerrors.FieldError{
				Field:   name,
				Message: "unknown parameter",
			})
		}
	}

	validated := make(map[string]any, len(raw))
	for _, f := range o.Fields {
		value, present := raw[f.Name]
		if !present {
			if f.Required {
				fieldErrs = append(fieldErrs, gwerrors.FieldError{
					Field:   f.Name,
					Message: "required",
				})
			}
			continue
		}
		if msg := f.check(value); msg != "" {
			fieldErrs = append(fieldErrs, gwerrors.FieldError{Field: f.Name, Message: msg})
			continue
		}
		validated[f.Name] = value
	}

	if len(fieldErrs) > 0 {
		return nil, &gwerrors.ValidationError{Tool: tool, Fields: fieldErrs}
	}
	return validated, nil
}

// check returns an error message for a present value, empty when valid.
func (f Field) check(value any) string {
	switch f.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return "must be a string"
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fmt.Sprintf("must be at most %d characters", f.MaxLen)
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			return fmt.Sprintf("must match pattern %s", f.Pattern)
		}
		if len(f.Enum) > 0 {
			for _, allowed := range f.Enum {
				if s == allowed {
					return ""
				}
			}
			return fmt.Sprintf("must be one of %v", f.Enum)
		}
		return ""

	case TypeInteger:
		n, ok := asNumber(value)
		if !ok || n != math.Trunc(n) {
			return "must be an integer"
		}
		return f.checkBounds(n)

	case TypeNumber:
		n, ok := asNumber(value)
		if !ok {
			return "must be a number"
		}
		return f.checkBounds(n)

	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}
		return ""

	case TypeArray:
		if _, ok := value.([]any); !ok {
			return "must be an array"
		}
		return ""

	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return "must be an object"
		}
		return ""

	default:
		return fmt.Sprintf("unsupported field type %q", f.Type)
	}
}

func (f Field) checkBounds(n float64) string {
	if f.Min != nil && n < *f.Min {
		return fmt.Sprintf("must be >= %v", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Sprintf("must be <= %v", *f.Max)
	}
	return ""
}

// asNumber accepts the numeric representations JSON decoding can produce.
func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// JSONSchema renders the object as a JSON Schema fragment for tool listings.
func (o Object) JSONSchema() map[string]any {
	properties := make(map[string]any, len(o.Fields))
	var required []string
	for _, f := range o.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Pattern != nil {
			prop["pattern"] = f.Pattern.String()
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.MaxLen > 0 {
			prop["maxLength"] = f.MaxLen
		}
		if f.Min != nil {
			prop["minimum"] = *f.Min
		}
		if f.Max != nil {
			prop["maximum"] = *f.Max
		}
		properties[f.Name] = prop
	}
	for _, f := range o.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Constructors for the shapes the tool catalogue declares.

// Snowflake declares a Discord resource id field.
func Snowflake(name, description string, required bool) Field {
	return Field{
		Name:        name,
		Type:        TypeString,
		Required:    required,
		Description: description,
		Pattern:     snowflakePattern,
	}
}

// String declares a free-form string field.
func String(name, description string, required bool, maxLen int) Field {
	return Field{
		Name:        name,
		Type:        TypeString,
		Required:    required,
		Description: description,
		MaxLen:      maxLen,
	}
}

// Enum declares a string field restricted to the given values.
func Enum(name, description string, required bool, values ...string) Field {
	return Field{
		Name:        name,
		Type:        TypeString,
		Required:    required,
		Description: description,
		Enum:        values,
	}
}

// Integer declares a bounded integer field.
func Integer(name, description string, required bool, min, max float64) Field {
	return Field{
		Name:        name,
		Type:        TypeInteger,
		Required:    required,
		Description: description,
		Min:         &min,
		Max:         &max,
	}
}

// Number declares an unbounded numeric field.
func Number(name, description string, required bool) Field {
	return Field{Name: name, Type: TypeNumber, Required: required, Description: description}
}

// Boolean declares a boolean field.
func Boolean(name, description string, required bool) Field {
	return Field{Name: name, Type: TypeBoolean, Required: required, Description: description}
}

// Array declares an array field.
func Array(name, description string, required bool) Field {
	return Field{Name: name, Type: TypeArray, Required: required, Description: description}
}
