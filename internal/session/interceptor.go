package session

import (
	"context"
	"log/slog"

	"cedarguard/internal/logger"
)

// Interceptor observes every check a Session runs. Before runs prior to
// evaluation and may derive a new context (e.g. attaching a request id);
// After runs once the decision (or error) is known. Interceptors must not
// block the caller for long: audit/trace/metric sinks should buffer or
// fire asynchronously rather than hold up the authorization path.
type Interceptor interface {
	Before(ctx context.Context, req Single) context.Context
	After(ctx context.Context, req Single, result CheckResult, err error)
}

// Chain composes interceptors into a single Interceptor that runs each in
// order for Before and in reverse order for After, the same nesting
// discipline net/http middleware chains use.
func Chain(interceptors ...Interceptor) Interceptor {
	return chain(interceptors)
}

type chain []Interceptor

func (c chain) Before(ctx context.Context, req Single) context.Context {
	for _, ic := range c {
		ctx = ic.Before(ctx, req)
	}
	return ctx
}

func (c chain) After(ctx context.Context, req Single, result CheckResult, err error) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].After(ctx, req, result, err)
	}
}

// Guarded wraps an Interceptor so a panic inside Before or After is
// caught and logged instead of taking down the authorization path. This
// is the failure-isolation mode a Session uses by default: an audit sink
// that fails to write must never turn into a denial-of-service against
// every other check in the process. Use Chain directly, unguarded, when
// an interceptor failure should be surfaced rather than swallowed (for
// example in tests asserting an interceptor's own correctness).
func Guarded(ic Interceptor) Interceptor {
	return guarded{ic: ic, log: logger.WithComponent("interceptor")}
}

type guarded struct {
	ic  Interceptor
	log *slog.Logger
}

func (g guarded) Before(ctx context.Context, req Single) (out context.Context) {
	out = ctx
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("interceptor panicked in Before", "panic", r)
			out = ctx
		}
	}()
	return g.ic.Before(ctx, req)
}

func (g guarded) After(ctx context.Context, req Single, result CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("interceptor panicked in After", "panic", r)
		}
	}()
	g.ic.After(ctx, req, result, err)
}
