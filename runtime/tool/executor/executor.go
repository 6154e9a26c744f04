// Package executor wraps single tool invocations with parameter validation,
// timing, structured error capture and metadata stamping. It is the one place
// that converts handler faults into error-shaped results, so callers always
// receive a tool.Result and never a raised fault.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow-ai/orderflow/runtime/telemetry"
	"github.com/orderflow-ai/orderflow/runtime/tool"
	"github.com/orderflow-ai/orderflow/runtime/tool/validate"
)

type (
	// Resolver looks up tool handlers and descriptors by name. Satisfied by
	// *tool.Registry.
	Resolver interface {
		Resolve(name string) (tool.Handler, bool, error)
		Descriptor(name string) (tool.Descriptor, bool)
	}

	// Executor runs individual tool calls against a resolver.
	Executor struct {
		resolver Resolver
		logger   telemetry.Logger
		tracer   telemetry.Tracer
		now      func() time.Time
	}

	// Option configures an Executor.
	Option func(*Executor)

	invokeOutcome struct {
		data any
		err  error
	}
)

// WithLogger configures the executor logger. When nil, the executor uses a
// noop logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer configures the executor tracer. When nil, the executor uses a
// noop tracer.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock overrides the wall clock used for metadata stamping. Tests use
// this to make timing deterministic.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Executor backed by the given resolver.
func New(resolver Resolver, opts ...Option) (*Executor, error) {
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	e := &Executor{
		resolver: resolver,
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
		now:      time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e, nil
}

// Execute runs one tool call. The sequence is fixed: resolve the tool,
// validate parameters, invoke the handler under the call deadline, then stamp
// metadata onto the result regardless of outcome. Execute never returns a
// fault; every failure mode becomes an error-shaped result.
func (e *Executor) Execute(ctx context.Context, call tool.Call) *tool.Result {
	start := e.now()
	requestID := uuid.NewString()

	ctx, span := e.tracer.Start(
		ctx,
		"tool.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", call.Tool),
			attribute.String("tool.call_id", call.ID),
			attribute.String("tool.request_id", requestID),
		),
	)
	defer span.End()

	result := e.run(ctx, call, span)
	e.stamp(result, call, requestID, start)

	if result.Success {
		span.SetStatus(codes.Ok, "ok")
		e.logger.Debug(ctx, "tool executed",
			"tool", call.Tool,
			"request_id", requestID,
			"duration_ms", result.Meta.ExecutionTimeMs,
		)
	} else {
		span.SetStatus(codes.Error, result.Error.Code)
		e.logger.Warn(ctx, "tool execution failed",
			"tool", call.Tool,
			"request_id", requestID,
			"code", result.Error.Code,
			"err", result.Error.Message,
			"duration_ms", result.Meta.ExecutionTimeMs,
		)
	}
	return result
}

func (e *Executor) run(ctx context.Context, call tool.Call, span telemetry.Span) *tool.Result {
	handler, found, err := e.resolver.Resolve(call.Tool)
	if !found {
		return tool.Fail(tool.CodeToolNotFound, fmt.Sprintf("tool %q is not registered", call.Tool))
	}
	if err != nil {
		span.RecordError(err)
		return tool.Fail(tool.CodeOrchestratorError, fmt.Sprintf("tool %q could not be resolved", call.Tool))
	}

	descriptor, _ := e.resolver.Descriptor(call.Tool)
	if vr := validate.Validate(call.Params, descriptor.Schema); !vr.Valid {
		msgs := vr.Messages()
		return tool.Fail(tool.CodeValidationFailed, strings.Join(msgs, "; "), msgs...)
	}

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = tool.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- invokeOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		data, err := handler.Handle(ctx, call.Params)
		outcome <- invokeOutcome{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return resultFromContextErr(ctx.Err())
	case out := <-outcome:
		if out.err != nil {
			return resultFromHandlerErr(out.err, span)
		}
		return tool.OK(out.data)
	}
}

// stamp overwrites result metadata with executor-owned values. Handlers never
// manufacture their own metadata; this guarantees consistent timing and
// request-id semantics across all tools.
func (e *Executor) stamp(result *tool.Result, call tool.Call, requestID string, start time.Time) {
	elapsed := e.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	version := "1.0"
	if d, ok := e.resolver.Descriptor(call.Tool); ok && d.Version != "" {
		version = d.Version
	}
	result.Meta = tool.Meta{
		ExecutionTimeMs: elapsed.Milliseconds(),
		ToolVersion:     version,
		RequestID:       requestID,
		Timestamp:       e.now().UTC(),
	}
}

func resultFromContextErr(err error) *tool.Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return tool.Fail(tool.CodeTimeout, "tool execution timed out")
	}
	return tool.Fail(tool.CodeOperationCancelled, "tool execution was cancelled")
}

// resultFromHandlerErr maps handler errors onto structured results. Expected
// business failures arrive as *tool.Error and keep their code; anything else
// is an unexpected fault surfaced with its message only.
func resultFromHandlerErr(err error, span telemetry.Span) *tool.Result {
	var te *tool.Error
	if errors.As(err, &te) {
		return tool.FailErr(te)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return tool.Fail(tool.CodeTimeout, "tool execution timed out")
	}
	if errors.Is(err, context.Canceled) {
		return tool.Fail(tool.CodeOperationCancelled, "tool execution was cancelled")
	}
	span.RecordError(err)
	return tool.Fail(tool.CodeExecutionError, err.Error())
}
