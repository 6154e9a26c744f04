// Package batch dispatches ordered lists of tool calls. Calls run
// concurrently, each under its own deadline, and a failing call never stops
// the rest of the batch: the caller gets one result per call at the same
// index plus a summary of outcomes.
package batch

import (
	"context"
	"errors"
	"sync"

	"github.com/orderflow-ai/orderflow/runtime/telemetry"
	"github.com/orderflow-ai/orderflow/runtime/tool"
)

type (
	// Runner executes a single tool call. Satisfied by *executor.Executor.
	Runner interface {
		Execute(ctx context.Context, call tool.Call) *tool.Result
	}

	// Dispatcher fans a batch of calls out to a Runner.
	Dispatcher struct {
		runner Runner
		logger telemetry.Logger
	}

	// Summary aggregates batch outcomes for logging and display.
	Summary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}

	// Option configures a Dispatcher.
	Option func(*Dispatcher)
)

// WithLogger configures the dispatcher logger. When nil, the dispatcher uses
// a noop logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New builds a Dispatcher backed by the given runner.
func New(runner Runner, opts ...Option) (*Dispatcher, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	d := &Dispatcher{runner: runner, logger: telemetry.NewNoopLogger()}
	for _, o := range opts {
		if o != nil {
			o(d)
		}
	}
	return d, nil
}

// ExecuteAll runs every call and returns results at the indices of their
// calls, regardless of completion order. Each call derives its own deadline
// from its timeout combined with ctx, so a batch-level cancellation reaches
// in-flight and not-yet-started calls alike. Individual failures are recorded
// in place and do not abort the batch.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []tool.Call) ([]*tool.Result, Summary) {
	results := make([]*tool.Result, len(calls))
	if len(calls) == 0 {
		return results, Summary{}
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c tool.Call) {
			defer wg.Done()
			results[idx] = d.runner.Execute(ctx, c)
		}(i, call)
	}
	wg.Wait()

	summary := Summary{Total: len(calls)}
	for _, r := range results {
		if r != nil && r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	d.logger.Info(ctx, "batch dispatched",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return results, summary
}
