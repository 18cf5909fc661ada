package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cedarguard/internal/authzerr"
	"cedarguard/internal/engine"
	"cedarguard/internal/entity"
	"cedarguard/internal/logger"
	"cedarguard/internal/store"
)

// ResolvePrincipalFunc resolves the session's logical principal into the
// entity.UID Cedar evaluates against. The default resolver is the
// identity function: the UID a Session was built with is used as-is. A
// resolver that cannot find the principal at all should return an
// authzerr error of kind Unauthenticated, which the session surfaces
// unchanged; any other error is treated as an internal failure.
type ResolvePrincipalFunc func(ctx context.Context, principal entity.UID) (entity.UID, error)

// Session is the per-request orchestrator: it holds a principal, a
// session-level context, a store, an engine, and an interceptor chain,
// and executes composed AuthChecks against them. A Session is cheap to
// build and is not required to be safe for concurrent use.
type Session struct {
	principal       entity.UID
	sessionContext  entity.Record
	resolvePrincipal ResolvePrincipalFunc
	engine          *engine.Engine
	store           *store.Store
	interceptor     Interceptor
	log             *slog.Logger
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithSessionContext seeds the session-level context merged into every
// check's Cedar request context.
func WithSessionContext(ctx entity.Record) Option {
	return func(s *Session) { s.sessionContext = ctx }
}

// WithResolvePrincipal overrides how the session's principal UID is
// resolved at evaluation time, e.g. to attach freshly-loaded attributes.
func WithResolvePrincipal(fn ResolvePrincipalFunc) Option {
	return func(s *Session) { s.resolvePrincipal = fn }
}

// WithInterceptor installs the interceptor chain fired after every
// Single check. Interceptor failures are caught by the Session itself
// (per the pipeline's contract, not the chain's) and never fail a check.
func WithInterceptor(ic Interceptor) Option {
	return func(s *Session) { s.interceptor = ic }
}

// New builds a Session scoped to principal.
func New(principal entity.UID, eng *engine.Engine, st *store.Store, opts ...Option) *Session {
	s := &Session{
		principal:        principal,
		resolvePrincipal: func(_ context.Context, p entity.UID) (entity.UID, error) { return p, nil },
		engine:           eng,
		store:            st,
		interceptor:      noopInterceptor{},
		log:              logger.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithContext returns a new Session whose session-level context is the
// receiver's context merged with ctx; ctx's values override on key
// collision. The receiver is left unmodified.
func (s *Session) WithContext(ctx entity.Record) *Session {
	next := *s
	next.sessionContext = mergeContext(s.sessionContext, ctx)
	return &next
}

// Run evaluates check and returns the AuthResponse describing every leaf
// that contributed, plus a non-nil error if the overall check did not
// succeed (an authzerr.Error, distinguishing Unauthorized from
// AuthorizationFailed).
func (s *Session) Run(ctx context.Context, check AuthCheck) (AuthResponse, error) {
	resp, _, err := s.run(ctx, check, true)
	return resp, err
}

// notification is a deferred interceptor firing. Leaves evaluated inside
// a disjunction buffer their notifications instead of firing them, so
// the chain only ever sees the branch that settled the result.
type notification struct {
	check  Single
	result CheckResult
	err    error
}

// run evaluates check. When notify is false the interceptor chain is not
// touched; the would-be firings are returned instead, for the enclosing
// disjunction to deliver or discard once it knows which branch won.
func (s *Session) run(ctx context.Context, check AuthCheck, notify bool) (AuthResponse, []notification, error) {
	switch c := check.(type) {
	case Single:
		return s.runSingle(ctx, c, notify)
	case All:
		return s.runAll(ctx, c, notify)
	case AnyOf:
		return s.runAnyOf(ctx, c, notify)
	default:
		return AuthResponse{Decision: Deny}, nil, authzerr.New(authzerr.ConfigurationError, fmt.Sprintf("session: unknown check type %T", check))
	}
}

// Require is Run, but the failure is returned as a plain error for
// callers that only care whether the check succeeded.
func (s *Session) Require(ctx context.Context, check AuthCheck) error {
	_, err := s.Run(ctx, check)
	return err
}

// IsAllowed is Run collapsed to a boolean: it never returns an error,
// treating any denial or internal failure alike as "not allowed".
func (s *Session) IsAllowed(ctx context.Context, check AuthCheck) bool {
	resp, _ := s.Run(ctx, check)
	return resp.Allowed()
}

// BatchRun runs each check in order, preserving the input order in the
// result and error slices. Checks execute sequentially; a future
// concurrent implementation is permitted to reorder execution as long as
// the result order matches the input order.
func (s *Session) BatchRun(ctx context.Context, checks []AuthCheck) ([]AuthResponse, []error) {
	responses := make([]AuthResponse, len(checks))
	errs := make([]error, len(checks))
	for i, c := range checks {
		responses[i], errs[i] = s.Run(ctx, c)
	}
	return responses, errs
}

// BatchIsAllowed is BatchRun collapsed to booleans.
func (s *Session) BatchIsAllowed(ctx context.Context, checks []AuthCheck) []bool {
	out := make([]bool, len(checks))
	for i, c := range checks {
		out[i] = s.IsAllowed(ctx, c)
	}
	return out
}

// FilterAllowed returns the subsequence of items for which toCheck(item)
// is allowed, preserving input order.
func FilterAllowed[T any](ctx context.Context, s *Session, items []T, toCheck func(T) AuthCheck) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if s.IsAllowed(ctx, toCheck(item)) {
			out = append(out, item)
		}
	}
	return out
}

// AllowedActions resolves the session's principal, loads entities for
// resource, and delegates to the engine to determine which of the named
// actions (under actionType) the principal may perform on resource.
func (s *Session) AllowedActions(ctx context.Context, resource entity.UID, actionType string, names []string) ([]entity.UID, error) {
	principal, err := s.resolvePrincipal(ctx, s.principal)
	if err != nil {
		return nil, wrapResolveErr(err)
	}
	return s.allowedActionsFor(ctx, principal, resource, actionType, names)
}

// AllowedActionsFor is AllowedActions with an explicit principal
// override, bypassing the session's own resolver.
func (s *Session) AllowedActionsFor(ctx context.Context, principal, resource entity.UID, actionType string, names []string) ([]entity.UID, error) {
	return s.allowedActionsFor(ctx, principal, resource, actionType, names)
}

func (s *Session) allowedActionsFor(ctx context.Context, principal, resource entity.UID, actionType string, names []string) ([]entity.UID, error) {
	candidates := make([]entity.UID, len(names))
	for i, name := range names {
		candidates[i] = entity.NewUID(actionType, name)
	}

	result, err := s.store.LoadEntities(ctx, []entity.UID{principal, resource})
	if err != nil {
		return nil, authzerr.Wrap(authzerr.AuthorizationFailed, "loading entities for allowed_actions", err)
	}

	allowed, err := s.engine.AllowedActions(ctx, principal, resource, candidates, result.Entities)
	if err != nil {
		return nil, authzerr.Wrap(authzerr.AuthorizationFailed, "evaluating allowed_actions", err)
	}
	return allowed, nil
}

// runSingle implements the numbered single-check evaluation protocol:
// condition short-circuit, principal resolution, entity loading, engine
// authorization, and interceptor notification — with any failing step
// collapsed into a synthetic denied AuthResponse rather than a panic or
// an unchecked error.
func (s *Session) runSingle(ctx context.Context, check Single, notify bool) (AuthResponse, []notification, error) {
	if check.Condition != nil && !check.Condition() {
		result := CheckResult{Action: check.Action, Resource: check.Resource, Decision: Allow}
		return responseFrom(Allow, result), nil, nil
	}

	started := time.Now()

	if notify {
		ctx = s.fireBefore(ctx, check)
	}

	principal := check.Principal
	var err error
	if principal.IsZero() {
		principal, err = s.resolvePrincipal(ctx, s.principal)
	}
	if err != nil {
		return s.failSingle(ctx, check, started, notify, wrapResolveErr(err))
	}

	loaded, err := s.store.LoadForRequest(ctx, principal, check.Resource)
	if err != nil {
		return s.failSingle(ctx, check, started, notify, authzerr.Wrap(authzerr.AuthorizationFailed, "loading entities", err))
	}

	mergedContext := mergeContext(s.sessionContext, check.Context)

	resp, err := s.engine.Authorize(ctx, engine.Request{
		Principal: principal,
		Action:    check.Action,
		Resource:  check.Resource,
		Context:   mergedContext,
	}, loaded.Entities)
	if err != nil {
		return s.failSingle(ctx, check, started, notify, authzerr.Wrap(authzerr.AuthorizationFailed, "evaluating policy", err))
	}

	result := CheckResult{
		Timestamp: started,
		Duration:  time.Since(started),
		Principal: principal,
		Action:    check.Action,
		Resource:  check.Resource,
		Entities:  loaded.Entities,
		Decision:  resp.Decision,
		Reasons:   resp.Reasons,
		Errors:    resp.Errors,
	}
	authResp := responseFrom(resp.Decision, result)

	var checkErr error
	if !resp.Allowed() {
		checkErr = authzerr.Unauthorizedf(
			strings.Join(resp.Reasons, ","),
			"action %s denied on %s", check.Action, describeResource(check.Resource),
		)
	}

	if notify {
		s.fireAfter(ctx, check, result, checkErr)
		return authResp, nil, checkErr
	}
	return authResp, []notification{{check: check, result: result, err: checkErr}}, checkErr
}

// failSingle builds the synthetic AuthorizationFailed AuthResponse the
// protocol requires when any step before the engine call raises, still
// invoking (or buffering) the interceptor chain on the synthetic result.
func (s *Session) failSingle(ctx context.Context, check Single, started time.Time, notify bool, err error) (AuthResponse, []notification, error) {
	principal := check.Principal
	if principal.IsZero() {
		principal = s.principal
	}
	result := CheckResult{
		Timestamp: started,
		Duration:  time.Since(started),
		Principal: principal,
		Action:    check.Action,
		Resource:  check.Resource,
		Decision:  Deny,
		Errors:    []string{err.Error()},
	}
	if notify {
		s.fireAfter(ctx, check, result, err)
		return responseFrom(Deny, result), nil, err
	}
	return responseFrom(Deny, result), []notification{{check: check, result: result, err: err}}, err
}

// wrapResolveErr preserves an Unauthenticated error a resolver returns
// for an unknown principal; everything else is an internal failure.
func wrapResolveErr(err error) error {
	if authzerr.Is(err, authzerr.Unauthenticated) {
		return err
	}
	return authzerr.Wrap(authzerr.AuthorizationFailed, "resolving principal", err)
}

// fireAfter invokes the interceptor chain's After hook, recovering from
// any panic so an interceptor failure never fails the check itself (the
// Session, not the chain, owns this suppression per the pipeline's
// contract).
func (s *Session) fireAfter(ctx context.Context, check Single, result CheckResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("interceptor panicked", "panic", r)
		}
	}()
	s.interceptor.After(ctx, check, result, err)
}

// fireBefore invokes the interceptor chain's Before hook with the same
// panic recovery as fireAfter; a panicking Before leaves ctx unchanged.
func (s *Session) fireBefore(ctx context.Context, check Single) (next context.Context) {
	next = ctx
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("interceptor panicked", "panic", r)
		}
	}()
	return s.interceptor.Before(ctx, check)
}

func (s *Session) runAll(ctx context.Context, all All, notify bool) (AuthResponse, []notification, error) {
	var results []CheckResult
	var notes []notification
	for _, c := range all.Checks {
		resp, childNotes, err := s.run(ctx, c, notify)
		results = append(results, resp.Results...)
		notes = append(notes, childNotes...)
		if err != nil {
			return responseFrom(Deny, results...), notes, err
		}
	}
	return responseFrom(Allow, results...), notes, nil
}

// runAnyOf evaluates branches with interceptor notification suppressed:
// only the branch that settles the disjunction is recorded. On the first
// success that branch's buffered notifications are delivered (losing
// branches stay silent); when every branch fails, all of the failed
// branches' notifications are delivered, since each denial contributed
// to the overall result.
func (s *Session) runAnyOf(ctx context.Context, anyOf AnyOf, notify bool) (AuthResponse, []notification, error) {
	var results []CheckResult
	var failed []notification
	var messages []string
	for _, c := range anyOf.Checks {
		resp, notes, err := s.run(ctx, c, false)
		results = append(results, resp.Results...)
		if err == nil {
			if notify {
				s.deliver(ctx, notes)
				notes = nil
			}
			return responseFrom(Allow, results...), notes, nil
		}
		failed = append(failed, notes...)
		messages = append(messages, err.Error())
	}
	joined := strings.Join(messages, "; ")
	err := authzerr.Unauthorizedf(joined, "none granted: %s", joined)
	if notify {
		s.deliver(ctx, failed)
		failed = nil
	}
	return responseFrom(Deny, results...), failed, err
}

// deliver fires buffered notifications once a disjunction has settled
// which branch's responses are recorded.
func (s *Session) deliver(ctx context.Context, notes []notification) {
	for _, n := range notes {
		nctx := s.fireBefore(ctx, n.check)
		s.fireAfter(nctx, n.check, n.result, n.err)
	}
}

func mergeContext(base, override entity.Record) entity.Record {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(entity.Record, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

type noopInterceptor struct{}

func (noopInterceptor) Before(ctx context.Context, _ Single) context.Context { return ctx }
func (noopInterceptor) After(context.Context, Single, CheckResult, error)    {}
