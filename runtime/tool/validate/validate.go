// Package validate checks structured tool parameters against their declared
// schema. Validation is exhaustive: every problem is reported in one pass and
// malformed input never panics or aborts the remaining checks.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/orderflow-ai/orderflow/runtime/tool"
)

type (
	// Result is the outcome of validating one parameter payload. It is a pure
	// value: either Valid is true and Errors is empty, or every violation is
	// listed. There is no partially valid state.
	Result struct {
		Valid  bool         `json:"isValid"`
		Errors []FieldError `json:"errors,omitempty"`
	}

	// FieldError describes a single validation violation.
	FieldError struct {
		Field   string `json:"field"`
		Code    string `json:"code"`
		Message string `json:"message"`
		Value   any    `json:"value,omitempty"`
	}
)

// Field-level validation codes.
const (
	CodeNullParameters       = "NULL_PARAMETERS"
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidType          = "INVALID_TYPE"
	CodeStringTooShort       = "STRING_TOO_SHORT"
	CodeStringTooLong        = "STRING_TOO_LONG"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeValueTooSmall        = "VALUE_TOO_SMALL"
	CodeValueTooLarge        = "VALUE_TOO_LARGE"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
)

// Validate checks params against schema and returns every violation found.
// A nil payload yields a single NULL_PARAMETERS error. Fields not declared in
// the schema are ignored.
func Validate(params map[string]any, schema tool.Schema) Result {
	if params == nil {
		return Result{Errors: []FieldError{{
			Field:   "",
			Code:    CodeNullParameters,
			Message: "parameters must be a non-null object",
		}}}
	}

	var errs []FieldError
	for _, name := range schema.Required {
		v, ok := params[name]
		if !ok || v == nil {
			errs = append(errs, FieldError{
				Field:   name,
				Code:    CodeRequiredFieldMissing,
				Message: fmt.Sprintf("required field %q is missing", name),
			})
		}
	}

	for _, prop := range schema.Properties {
		raw, ok := params[prop.Name]
		if !ok || raw == nil {
			continue
		}
		errs = append(errs, checkProperty(prop, raw)...)
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Messages flattens the violations into human-readable strings, one per error.
func (r Result) Messages() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// checkProperty coerces raw to the declared type and, when coercion succeeds,
// applies the refinement constraints.
func checkProperty(prop tool.Property, raw any) []FieldError {
	switch normalizeType(prop.Type) {
	case "string":
		s, ok := coerceString(raw)
		if !ok {
			return []FieldError{typeError(prop.Name, "string", raw)}
		}
		return checkString(prop, s, raw)
	case "integer":
		n, ok := coerceInteger(raw)
		if !ok {
			return []FieldError{typeError(prop.Name, "integer", raw)}
		}
		return checkNumber(prop, float64(n), raw)
	case "number":
		f, ok := coerceNumber(raw)
		if !ok {
			return []FieldError{typeError(prop.Name, "number", raw)}
		}
		return checkNumber(prop, f, raw)
	case "boolean":
		if _, ok := coerceBoolean(raw); !ok {
			return []FieldError{typeError(prop.Name, "boolean", raw)}
		}
		return nil
	default:
		// Unconstrained types (object, array) pass through untouched.
		return nil
	}
}

func checkString(prop tool.Property, s string, raw any) []FieldError {
	var errs []FieldError
	if prop.MinLength != nil && len(s) < *prop.MinLength {
		errs = append(errs, FieldError{
			Field:   prop.Name,
			Code:    CodeStringTooShort,
			Message: fmt.Sprintf("field %q must be at least %d characters", prop.Name, *prop.MinLength),
			Value:   raw,
		})
	}
	if prop.MaxLength != nil && len(s) > *prop.MaxLength {
		errs = append(errs, FieldError{
			Field:   prop.Name,
			Code:    CodeStringTooLong,
			Message: fmt.Sprintf("field %q must be at most %d characters", prop.Name, *prop.MaxLength),
			Value:   raw,
		})
	}
	if prop.Pattern != "" {
		re, err := regexp.Compile(prop.Pattern)
		if err == nil && !re.MatchString(s) {
			errs = append(errs, FieldError{
				Field:   prop.Name,
				Code:    CodePatternMismatch,
				Message: fmt.Sprintf("field %q does not match pattern %q", prop.Name, prop.Pattern),
				Value:   raw,
			})
		}
	}
	if len(prop.Enum) > 0 && !containsString(prop.Enum, s) {
		errs = append(errs, FieldError{
			Field:   prop.Name,
			Code:    CodeInvalidEnumValue,
			Message: fmt.Sprintf("field %q must be one of: %s", prop.Name, strings.Join(prop.Enum, ", ")),
			Value:   raw,
		})
	}
	return errs
}

func checkNumber(prop tool.Property, f float64, raw any) []FieldError {
	var errs []FieldError
	if prop.Minimum != nil && f < *prop.Minimum {
		errs = append(errs, FieldError{
			Field:   prop.Name,
			Code:    CodeValueTooSmall,
			Message: fmt.Sprintf("field %q must be >= %v", prop.Name, *prop.Minimum),
			Value:   raw,
		})
	}
	if prop.Maximum != nil && f > *prop.Maximum {
		errs = append(errs, FieldError{
			Field:   prop.Name,
			Code:    CodeValueTooLarge,
			Message: fmt.Sprintf("field %q must be <= %v", prop.Name, *prop.Maximum),
			Value:   raw,
		})
	}
	return errs
}

func typeError(field, want string, raw any) FieldError {
	return FieldError{
		Field:   field,
		Code:    CodeInvalidType,
		Message: fmt.Sprintf("field %q must be of type %s", field, want),
		Value:   raw,
	}
}

func normalizeType(t string) string {
	switch t {
	case "int", "integer":
		return "integer"
	case "float", "number", "double":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "", "string":
		return "string"
	default:
		return t
	}
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func coerceBoolean(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
