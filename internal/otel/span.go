// Package otel provides OpenTelemetry span helpers shared by the sync and
// mirror packages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys used on sync and mirror spans
const (
	AttrRunID    = attribute.Key("sync.run_id")
	AttrPrimary  = attribute.Key("sync.primary")
	AttrTargets  = attribute.Key("sync.targets")
	AttrDryRun   = attribute.Key("sync.dry_run")
	AttrSource   = attribute.Key("mirror.source")
	AttrTarget   = attribute.Key("mirror.target")
	AttrExitCode = attribute.Key("mirror.exit_code")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a
// no-op span. The no-op span is never the caller's span, so ending it leaves
// the parent untouched.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, opts...)
}

// Tracer returns the named tracer of tp, or nil when tp is nil
func Tracer(tp trace.TracerProvider, name string) trace.Tracer {
	if tp == nil {
		return nil
	}
	return tp.Tracer(name)
}

// RecordError records err on the span and marks it failed with description.
// The description stays generic; stderr and paths only travel in the event.
func RecordError(span trace.Span, err error, description string) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}

// EndStatus marks the span by the final error of the operation
func EndStatus(span trace.Span, err error, description string) {
	if err != nil {
		RecordError(span, err, description)
		return
	}
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}
