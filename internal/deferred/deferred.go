// Package deferred implements the deferred check: "authorize action A on
// the entity with id I of type T, whose parents are unknown to the
// caller". It is the Go expression of the generated DSL's
// `<Domain>.<Action>.on(typed_id)` surface, used when a caller has a raw
// (type, id) pair and wants the resource's ancestry resolved lazily at
// evaluation time rather than building the parent chain itself.
package deferred

import (
	"context"

	"cedarguard/internal/entity"
	"cedarguard/internal/session"
)

// Check represents a deferred authorization check: evaluate action
// against the entity identified by (entityType, id). The session's store
// resolves the entity and its parent chain when the check runs; a
// missing entity yields a resource with no attributes and no parents,
// which Cedar will typically deny rather than error.
type Check struct {
	Action     entity.UID
	EntityType string
	ID         string
}

// On builds a deferred Check for action against the entity of
// entityType identified by id.
func On(action entity.UID, entityType, id string) Check {
	return Check{Action: action, EntityType: entityType, ID: id}
}

// Run delegates to sess.Run with a Single check for Action on the
// identified resource.
func (c Check) Run(ctx context.Context, sess *session.Session) (session.AuthResponse, error) {
	resource := entity.NewUID(c.EntityType, c.ID)
	return sess.Run(ctx, session.Check(c.Action, resource))
}

// Require is Run, returning only the error.
func (c Check) Require(ctx context.Context, sess *session.Session) error {
	_, err := c.Run(ctx, sess)
	return err
}

// IsAllowed is Run collapsed to a boolean.
func (c Check) IsAllowed(ctx context.Context, sess *session.Session) bool {
	resp, _ := c.Run(ctx, sess)
	return resp.Allowed()
}
