package interceptor

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cedarguard/internal/observability"
	"cedarguard/internal/session"
)

type spanKey struct{}

// Trace is an interceptor that opens one OpenTelemetry span per check,
// tagged with principal.type, action.name, resource.type, decision, and
// duration_ms.
type Trace struct{}

// NewTrace builds a Trace interceptor.
func NewTrace() *Trace { return &Trace{} }

func (Trace) Before(ctx context.Context, check session.Single) context.Context {
	spanCtx, span := observability.StartCheckSpan(ctx, check.Action.ID)
	return context.WithValue(spanCtx, spanKey{}, span)
}

func (Trace) After(ctx context.Context, check session.Single, result session.CheckResult, err error) {
	span, ok := ctx.Value(spanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	span.SetAttributes(observability.CheckAttributes(
		result.Principal.Type,
		check.Action.ID,
		check.Resource.Type,
		string(result.Decision),
		result.Duration.Milliseconds(),
	)...)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
}
