package interceptor

import (
	"context"

	"cedarguard/internal/session"
	"cedarguard/internal/trace"
)

// Recent is a lightweight interceptor that records every decision into
// an in-memory trace.Store, for local inspection without standing up an
// audit sink.
type Recent struct {
	store *trace.Store
}

// NewRecent builds a Recent interceptor backed by store.
func NewRecent(store *trace.Store) *Recent {
	return &Recent{store: store}
}

func (Recent) Before(ctx context.Context, _ session.Single) context.Context { return ctx }

func (r *Recent) After(_ context.Context, check session.Single, result session.CheckResult, _ error) {
	r.store.Add(trace.Decision{
		Timestamp:     result.Timestamp.UTC(),
		PrincipalType: result.Principal.Type,
		PrincipalID:   result.Principal.ID,
		Action:        check.Action.ID,
		ResourceType:  check.Resource.Type,
		ResourceID:    check.Resource.ID,
		Allowed:       result.Decision == session.Allow,
		Reasons:       result.Reasons,
	})
}
