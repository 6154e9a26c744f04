// Package tool defines the typed tool surface exposed to the chat agent:
// descriptors with declarative parameter schemas, invocation requests and
// results, and the registry that maps stable tool names to handler factories.
package tool

import (
	"context"
	"fmt"
	"time"
)

type (
	// Descriptor is the immutable metadata for a registered tool. Descriptors
	// are created once at registration and never mutated afterwards.
	Descriptor struct {
		// Name is the unique tool identifier (e.g. "get_order_details").
		Name string
		// Description documents the tool for planners and UIs.
		Description string
		// Category groups related tools (e.g. "orders", "analysis").
		Category string
		// Version identifies the tool implementation revision stamped onto
		// result metadata. Empty defaults to "1.0".
		Version string
		// Schema declares the accepted parameters.
		Schema Schema
		// Examples optionally illustrates valid invocations for discovery.
		Examples []Example
	}

	// Schema describes the parameters a tool accepts. Properties preserve
	// declaration order; Required names must all exist in Properties.
	Schema struct {
		// Type is the schema root type, always "object" for tool parameters.
		Type string
		// Properties lists accepted parameters in declaration order.
		Properties []Property
		// Required names the parameters that must be present and non-null.
		Required []string
	}

	// Property declares a single accepted parameter and its constraints.
	Property struct {
		Name        string
		Type        string
		Description string
		Required    bool
		// Enum restricts string values to the listed members when non-empty.
		Enum []string
		// Pattern is an anchored regular expression applied to string values.
		Pattern string
		// Minimum and Maximum bound numeric values when set.
		Minimum *float64
		Maximum *float64
		// MinLength and MaxLength bound string lengths when set.
		MinLength *int
		MaxLength *int
		// Default documents the value assumed when the parameter is omitted.
		Default any
	}

	// Example illustrates a valid tool invocation.
	Example struct {
		Description    string         `json:"description"`
		Parameters     map[string]any `json:"parameters"`
		ExpectedResult string         `json:"expectedResult,omitempty"`
	}

	// Call is a single invocation request. Calls are ephemeral, created per
	// request and discarded once the result is produced.
	Call struct {
		// ID correlates the call with its result in batch responses.
		ID string `json:"id"`
		// Tool names the registered tool to invoke.
		Tool string `json:"toolName"`
		// Params is the structured parameter payload validated against the
		// tool schema before the handler runs.
		Params map[string]any `json:"parameters"`
		// Timeout bounds the call. Zero applies DefaultTimeout.
		Timeout time.Duration `json:"-"`
	}

	// Result is the outcome of one tool invocation. Exactly one of Data and
	// Error is meaningful depending on Success.
	Result struct {
		Success bool   `json:"success"`
		Data    any    `json:"data,omitempty"`
		Error   *Error `json:"error,omitempty"`
		Meta    Meta   `json:"metadata"`
	}

	// Error is a structured tool failure. Handlers return *Error for expected
	// business conditions; the executor maps everything else to EXECUTION_ERROR.
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details,omitempty"`
	}

	// Meta carries execution metadata stamped by the executor on every result.
	// Handlers never populate it themselves; the executor overwrites it so
	// timing and request-id semantics are consistent across all tools.
	Meta struct {
		ExecutionTimeMs int64     `json:"executionTimeMs"`
		ToolVersion     string    `json:"toolVersion,omitempty"`
		RequestID       string    `json:"requestId"`
		Timestamp       time.Time `json:"timestamp"`
	}

	// Handler executes tool business logic. Implementations must observe ctx
	// cancellation at I/O boundaries and return promptly once it fires.
	// Expected business failures are returned as *Error; any other error is
	// treated as an unexpected execution fault.
	Handler interface {
		Handle(ctx context.Context, params map[string]any) (any, error)
	}

	// HandlerFunc adapts a function to the Handler interface.
	HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

	// Factory builds a handler instance on demand. Resolving through factories
	// lets deployments swap implementations without touching callers.
	Factory func() (Handler, error)
)

// DefaultTimeout bounds tool calls that do not specify their own timeout.
const DefaultTimeout = 30 * time.Second

// Well-known result error codes.
const (
	CodeToolNotFound       = "TOOL_NOT_FOUND"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeOperationCancelled = "OPERATION_CANCELLED"
	CodeTimeout            = "TIMEOUT"
	CodeExecutionError     = "EXECUTION_ERROR"
	CodeOrchestratorError  = "ORCHESTRATOR_ERROR"
	CodeOrderNotFound      = "ORDER_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidState       = "INVALID_STATE"
	CodeConflict           = "CONFLICT"
)

// Handle invokes the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, params map[string]any) (any, error) {
	return f(ctx, params)
}

// NewError constructs a structured tool error with the given code and message.
func NewError(code, message string, details ...string) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Errorf constructs a structured tool error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// OK builds a success result carrying the given payload. Metadata is stamped
// by the executor.
func OK(data any) *Result {
	return &Result{Success: true, Data: data}
}

// Fail builds a failure result carrying a structured error. Metadata is
// stamped by the executor.
func Fail(code, message string, details ...string) *Result {
	return &Result{Success: false, Error: NewError(code, message, details...)}
}

// FailErr builds a failure result from an existing structured error.
func FailErr(err *Error) *Result {
	return &Result{Success: false, Error: err}
}

// Validate checks the descriptor invariants: non-empty name, object schema
// and required names all declared as properties.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor: name is required")
	}
	if d.Schema.Type != "" && d.Schema.Type != "object" {
		return fmt.Errorf("tool %q: schema type must be object, got %q", d.Name, d.Schema.Type)
	}
	declared := make(map[string]struct{}, len(d.Schema.Properties))
	for _, p := range d.Schema.Properties {
		if p.Name == "" {
			return fmt.Errorf("tool %q: property with empty name", d.Name)
		}
		if _, ok := declared[p.Name]; ok {
			return fmt.Errorf("tool %q: duplicate property %q", d.Name, p.Name)
		}
		declared[p.Name] = struct{}{}
	}
	for _, name := range d.Schema.Required {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("tool %q: required field %q is not declared as a property", d.Name, name)
		}
	}
	return nil
}

// Property returns the declared property with the given name.
func (s Schema) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// IsRequired reports whether the named field appears in the required set.
func (s Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
