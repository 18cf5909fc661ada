// Package interceptor provides the built-in interceptors a Session can
// be configured with: audit logging, tracing, and metrics, plus the
// composing constructor that chains them into the single Interceptor a
// Session accepts. The pipeline's combining constructor threads calls
// through in sequence, preserving order; the Session itself (not this
// package) is responsible for suppressing a failing interceptor, so
// New wraps the composed chain as a whole in session.Guarded; the
// individual interceptors are not guarded one by one.
package interceptor

import "cedarguard/internal/session"

// New composes interceptors into the single, panic-isolated Interceptor
// a Session is configured with. Interceptors run in order for Before and
// in reverse order for After, the same nesting discipline net/http
// middleware chains use.
func New(interceptors ...session.Interceptor) session.Interceptor {
	return session.Guarded(session.Chain(interceptors...))
}
