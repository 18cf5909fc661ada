// Package engine adapts github.com/cedar-policy/cedar-go into the
// authorization engine the session runner evaluates requests against. It
// owns the loaded PolicySet and supports hot-reloading it from disk.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"

	"cedarguard/internal/entity"
	"cedarguard/internal/logger"
)

// Request is a single authorization request to evaluate.
type Request struct {
	Principal entity.UID
	Action    entity.UID
	Resource  entity.UID
	Context   entity.Record
}

// Decision is the outcome of evaluating a Request.
type Decision string

const (
	Allow Decision = "Allow"
	Deny  Decision = "Deny"
)

// Response is the result of evaluating a Request: the decision plus the
// policy ids that determined it.
type Response struct {
	Decision Decision
	Reasons  []string
	Errors   []string
}

// Allowed reports whether the response is an Allow decision.
func (r Response) Allowed() bool { return r.Decision == Allow }

// Engine evaluates authorization requests against a loaded Cedar policy
// set. It is safe for concurrent use; LoadFile and LoadBytes atomically
// swap the active policy set without blocking in-flight Authorize calls.
type Engine struct {
	policySet atomic.Pointer[cedar.PolicySet]
	log       *slog.Logger
}

// New builds an Engine with no policy set. LoadFile or LoadBytes must be
// called before Authorize will allow anything; until then it returns an
// error.
func New() *Engine {
	return &Engine{log: logger.WithComponent("engine")}
}

// LoadFile parses the Cedar policy file at path and installs it as the
// active policy set.
func (e *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("engine: reading policy file: %w", err)
	}
	return e.LoadBytes(path, data)
}

// LoadBytes parses raw Cedar policy source and installs it as the active
// policy set. name is used only for error messages from the parser.
func (e *Engine) LoadBytes(name string, data []byte) error {
	ps, err := cedar.NewPolicySetFromBytes(name, data)
	if err != nil {
		return fmt.Errorf("engine: parsing policies: %w", err)
	}
	e.policySet.Store(ps)
	return nil
}

// Authorize evaluates a single request against the active policy set and
// the entities supplied by the caller (typically the result of a store
// load for that request's principal/action/resource).
func (e *Engine) Authorize(ctx context.Context, req Request, entities *entity.Entities) (Response, error) {
	ps := e.policySet.Load()
	if ps == nil {
		return Response{Decision: Deny}, fmt.Errorf("engine: no policy set loaded")
	}

	principal := entity.ToCedarUID(req.Principal)
	action := entity.ToCedarUID(req.Action)
	resource := entity.ToCedarUID(req.Resource)

	entityMap := entity.ToCedarEntityMap(entities)
	ensurePresent(entityMap, principal)
	ensurePresent(entityMap, action)
	ensurePresent(entityMap, resource)

	cedarReq := types.Request{
		Principal: principal,
		Action:    action,
		Resource:  resource,
		Context:   entity.ToCedarRecord(req.Context),
	}

	decision, diagnostic := cedar.Authorize(ps, entityMap, cedarReq)

	resp := Response{Decision: Deny}
	if decision == cedar.Allow {
		resp.Decision = Allow
	}
	for _, reason := range diagnostic.Reasons {
		resp.Reasons = append(resp.Reasons, string(reason.PolicyID))
	}
	for _, err := range diagnostic.Errors {
		resp.Errors = append(resp.Errors, err.String())
	}

	return resp, nil
}

// AllowedActions returns the subset of candidateActions that Authorize
// would allow for principal acting on resource, evaluating each action
// independently against the loaded policy set.
func (e *Engine) AllowedActions(ctx context.Context, principal, resource entity.UID, candidateActions []entity.UID, entities *entity.Entities) ([]entity.UID, error) {
	var allowed []entity.UID
	for _, action := range candidateActions {
		resp, err := e.Authorize(ctx, Request{Principal: principal, Action: action, Resource: resource}, entities)
		if err != nil {
			return nil, err
		}
		if resp.Allowed() {
			allowed = append(allowed, action)
		}
	}
	return allowed, nil
}

// ensurePresent guarantees principal/action/resource have at least a bare
// entry in entities even when the store found nothing for them; Cedar's
// evaluator treats a referenced-but-absent entity as an evaluation error
// rather than simply having no attributes.
func ensurePresent(m types.EntityMap, uid types.EntityUID) {
	if _, ok := m[uid]; !ok {
		m[uid] = types.Entity{UID: uid, Attributes: types.Record{}}
	}
}
