package session

import (
	"time"

	"cedarguard/internal/engine"
	"cedarguard/internal/entity"
)

// Decision mirrors engine.Decision so callers of this package don't need
// to import the engine package directly.
type Decision = engine.Decision

const (
	Allow = engine.Allow
	Deny  = engine.Deny
)

// AuthCheck is a closed sum type describing what to evaluate: either a
// single action-on-resource check, or a boolean composition of other
// checks. And/Or build compositions without requiring the caller to name
// All/AnyOf directly, standing in for the generated DSL's `&`/`|`
// operators (Go has no operator overloading).
type AuthCheck interface {
	isAuthCheck()
	And(other AuthCheck) AuthCheck
	Or(other AuthCheck) AuthCheck
}

// Single checks whether a principal may perform Action on Resource.
// Condition, Context, and Principal are optional refinements set via
// When, WithCheckContext, and AsPrincipal.
type Single struct {
	Action    entity.UID
	Resource  entity.UID
	Condition func() bool
	Context   entity.Record
	Principal entity.UID // zero value means "use the session's principal"
}

func (Single) isAuthCheck()                    {}
func (s Single) And(other AuthCheck) AuthCheck { return AllOf(s, other) }
func (s Single) Or(other AuthCheck) AuthCheck  { return AnyOfChecks(s, other) }

// Check builds a Single check.
func Check(action, resource entity.UID) Single {
	return Single{Action: action, Resource: resource}
}

// CollectionID is the synthetic resource id substituted for
// collection-level checks, where the action targets the resource type as
// a whole and no single entity exists yet (e.g. "create").
const CollectionID = "__collection__"

// CheckCollection builds a Single check against the resource type as a
// whole rather than one entity.
func CheckCollection(action entity.UID, resourceType string) Single {
	return Single{Action: action, Resource: entity.NewUID(resourceType, CollectionID)}
}

// describeResource renders a resource for user-facing error messages:
// the canonical uid form, or "<Type> collection" for collection-level
// checks.
func describeResource(uid entity.UID) string {
	if uid.ID == CollectionID {
		return uid.Type + " collection"
	}
	return uid.String()
}

// When attaches a guard condition: if it evaluates false at run time, the
// check succeeds immediately without touching the store or engine.
func (s Single) When(condition func() bool) Single {
	s.Condition = condition
	return s
}

// WithCheckContext attaches per-check context merged into the session's
// context at evaluation time; keys in ctx win on collision.
func (s Single) WithCheckContext(ctx entity.Record) Single {
	s.Context = ctx
	return s
}

// AsPrincipal overrides the principal this check evaluates against,
// instead of the session's own principal.
func (s Single) AsPrincipal(p entity.UID) Single {
	s.Principal = p
	return s
}

// All is the conjunction of its checks: it is satisfied only if every
// check is satisfied. Evaluation short-circuits on the first denial.
type All struct {
	Checks []AuthCheck
}

func (All) isAuthCheck()                    {}
func (a All) And(other AuthCheck) AuthCheck { return AllOf(a, other) }
func (a All) Or(other AuthCheck) AuthCheck  { return AnyOfChecks(a, other) }

// AllOf builds an All check, flattening any nested All checks so a
// composition like AllOf(a, AllOf(b, c)) evaluates identically to
// AllOf(a, b, c).
func AllOf(checks ...AuthCheck) All {
	var out []AuthCheck
	for _, c := range checks {
		if nested, ok := c.(All); ok {
			out = append(out, nested.Checks...)
			continue
		}
		out = append(out, c)
	}
	return All{Checks: out}
}

// AnyOf is the disjunction of its checks: it is satisfied if at least one
// check is satisfied. Evaluation short-circuits on the first success.
type AnyOf struct {
	Checks []AuthCheck
}

func (AnyOf) isAuthCheck()                    {}
func (a AnyOf) And(other AuthCheck) AuthCheck { return AllOf(a, other) }
func (a AnyOf) Or(other AuthCheck) AuthCheck  { return AnyOfChecks(a, other) }

// AnyOfChecks builds an AnyOf check, flattening nested AnyOf checks.
func AnyOfChecks(checks ...AuthCheck) AnyOf {
	var out []AuthCheck
	for _, c := range checks {
		if nested, ok := c.(AnyOf); ok {
			out = append(out, nested.Checks...)
			continue
		}
		out = append(out, c)
	}
	return AnyOf{Checks: out}
}

// CheckResult is the outcome of evaluating a single Single check, the
// leaf node of an AuthResponse's evaluation tree.
type CheckResult struct {
	Timestamp time.Time     // wall clock at the start of evaluation
	Duration  time.Duration // monotonic time spent evaluating
	Principal entity.UID    // the principal actually evaluated, after resolution
	Action    entity.UID
	Resource  entity.UID
	Entities  *entity.Entities // the full entity set the decision was evaluated against
	Decision  Decision
	Reasons   []string
	Errors    []string
}

// Allowed reports whether this leaf check was an Allow decision.
func (r CheckResult) Allowed() bool { return r.Decision == Allow }

// AuthResponse is the result of running an AuthCheck: the overall
// decision plus every leaf CheckResult that contributed to it, in
// evaluation order (trimmed by short-circuiting).
type AuthResponse struct {
	Decision Decision
	Results  []CheckResult
}

// Allowed reports whether the overall response is an Allow decision.
func (r AuthResponse) Allowed() bool { return r.Decision == Allow }

func responseFrom(decision Decision, results ...CheckResult) AuthResponse {
	return AuthResponse{Decision: decision, Results: results}
}
