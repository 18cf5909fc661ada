package interceptor

import (
	"context"

	"cedarguard/internal/authzerr"
	"cedarguard/internal/metrics"
	"cedarguard/internal/session"
)

// Metrics is an interceptor that records latency and allow/deny/error
// counts per check and per action through a metrics.Collector.
type Metrics struct {
	collector *metrics.Collector
}

// NewMetrics builds a Metrics interceptor backed by collector.
func NewMetrics(collector *metrics.Collector) *Metrics {
	return &Metrics{collector: collector}
}

func (Metrics) Before(ctx context.Context, _ session.Single) context.Context { return ctx }

func (m *Metrics) After(_ context.Context, check session.Single, result session.CheckResult, err error) {
	// A denial reaches After with an Unauthorized error; it is counted as
	// a deny, not as an error.
	if authzerr.Is(err, authzerr.Unauthorized) {
		err = nil
	}
	m.collector.RecordCheck(check.Action.ID, result.Duration, result.Decision == session.Allow, err)
}
