package model

import (
	"context"
	"fmt"
)

// Trace describes the failed call passed to a Tracer.
type Trace struct {
	Role      string
	Operation string
	Args      any
}

// Tracer observes operation failures. Implementations must not retain or
// alter the error.
type Tracer interface {
	TraceError(ctx context.Context, tr Trace, err error)
}

// Tracers fans a trace out to several tracers.
type Tracers []Tracer

// TraceError calls every tracer in order.
func (ts Tracers) TraceError(ctx context.Context, tr Trace, err error) {
	for _, t := range ts {
		t.TraceError(ctx, tr, err)
	}
}

// LogTracer writes failures to a logger.
type LogTracer struct {
	Logger Logger
}

// TraceError logs the failure at error level.
func (t LogTracer) TraceError(_ context.Context, tr Trace, err error) {
	if t.Logger == nil {
		return
	}
	t.Logger.Error("model operation failed",
		"role", tr.Role,
		"operation", tr.Operation,
		"args", fmt.Sprintf("%+v", tr.Args),
		"error", err,
	)
}

// ErrorCounter counts failures per role and operation.
type ErrorCounter interface {
	OperationFailed(role, operation string)
}

// CountingTracer feeds failures into an ErrorCounter.
type CountingTracer struct {
	Counter ErrorCounter
}

// TraceError increments the counter for the failed operation.
func (t CountingTracer) TraceError(_ context.Context, tr Trace, _ error) {
	if t.Counter != nil {
		t.Counter.OperationFailed(tr.Role, tr.Operation)
	}
}
