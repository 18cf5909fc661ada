package interceptor

import (
	"context"
	"strings"
	"testing"

	"cedarguard/internal/entity"
	"cedarguard/internal/metrics"
	"cedarguard/internal/session"
	"cedarguard/internal/trace"
)

func TestNew_ChainsBeforeAndAfter(t *testing.T) {
	var order []string
	recording := func(name string) session.Interceptor {
		return recorder{name: name, order: &order}
	}

	chained := New(recording("a"), recording("b"))

	check := session.Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", "x"))
	ctx := chained.Before(context.Background(), check)
	chained.After(ctx, check, session.CheckResult{Decision: session.Allow}, nil)

	want := []string{"a.before", "b.before", "b.after", "a.after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestNew_IsolatesPanickingInterceptor(t *testing.T) {
	var order []string
	chained := New(panicking{}, recorder{name: "safe", order: &order})

	check := session.Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", "x"))

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("New's chain panicked: %v (session.Guarded must isolate interceptor panics)", r)
		}
	}()
	ctx := chained.Before(context.Background(), check)
	chained.After(ctx, check, session.CheckResult{Decision: session.Deny}, nil)

	// New guards the chain as a whole, so a panic aborts whatever of the
	// chain has not run yet for that hook: Before stops at the panicking
	// interceptor before reaching "safe", while After (reverse order)
	// reaches "safe" first and then aborts.
	if len(order) != 1 || order[0] != "safe.after" {
		t.Errorf("order = %v, want [safe.after]", order)
	}
}

func TestChain_PerInterceptorGuardKeepsLaterInterceptorsNotified(t *testing.T) {
	var order []string
	chained := session.Chain(session.Guarded(panicking{}), recorder{name: "safe", order: &order})

	check := session.Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", "x"))
	ctx := chained.Before(context.Background(), check)
	chained.After(ctx, check, session.CheckResult{Decision: session.Deny}, nil)

	want := []string{"safe.before", "safe.after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v (guarding each interceptor individually must keep the rest of the chain firing)", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestMetrics_RecordsCheck(t *testing.T) {
	collector := metrics.NewCollector()
	m := NewMetrics(collector)

	check := session.Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", "x"))
	ctx := m.Before(context.Background(), check)
	m.After(ctx, check, session.CheckResult{Decision: session.Allow}, nil)

	out := collector.PrometheusFormat()
	if !strings.Contains(out, "cedarguard_checks_total 1") {
		t.Errorf("PrometheusFormat() = %q, want it to contain cedarguard_checks_total 1", out)
	}
	if !strings.Contains(out, "cedarguard_checks_allowed_total 1") {
		t.Errorf("PrometheusFormat() = %q, want it to contain cedarguard_checks_allowed_total 1", out)
	}
}

func TestRecent_AddsDecision(t *testing.T) {
	store := trace.NewStore(10)
	r := NewRecent(store)

	check := session.Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", "x"))
	result := session.CheckResult{
		Principal: entity.NewUID("User", "alice"),
		Decision:  session.Allow,
	}
	r.After(context.Background(), check, result, nil)

	recent := store.List(10)
	if len(recent) != 1 {
		t.Fatalf("List returned %d entries, want 1", len(recent))
	}
	if recent[0].PrincipalID != "alice" || !recent[0].Allowed {
		t.Errorf("recorded decision = %+v, want principal alice, allowed", recent[0])
	}
}

type recorder struct {
	name  string
	order *[]string
}

func (r recorder) Before(ctx context.Context, _ session.Single) context.Context {
	*r.order = append(*r.order, r.name+".before")
	return ctx
}

func (r recorder) After(context.Context, session.Single, session.CheckResult, error) {
	*r.order = append(*r.order, r.name+".after")
}

type panicking struct{}

func (panicking) Before(ctx context.Context, _ session.Single) context.Context {
	panic("boom in Before")
}

func (panicking) After(context.Context, session.Single, session.CheckResult, error) {
	panic("boom in After")
}
