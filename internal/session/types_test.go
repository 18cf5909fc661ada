package session

import (
	"testing"

	"cedarguard/internal/entity"
)

func view(resource string) Single {
	return Check(entity.NewUID("Action", "view"), entity.NewUID("Photo", resource))
}

func TestAnd_FlattensNestedAll(t *testing.T) {
	a, b, c := view("a"), view("b"), view("c")

	left := a.And(b).And(c)
	right := a.And(b.And(c))

	la, ok := left.(All)
	if !ok {
		t.Fatalf("(a & b) & c is %T, want All", left)
	}
	ra, ok := right.(All)
	if !ok {
		t.Fatalf("a & (b & c) is %T, want All", right)
	}
	if len(la.Checks) != 3 || len(ra.Checks) != 3 {
		t.Errorf("flattened lengths = %d and %d, want 3 and 3", len(la.Checks), len(ra.Checks))
	}
	for _, checks := range [][]AuthCheck{la.Checks, ra.Checks} {
		for i, want := range []Single{a, b, c} {
			got, ok := checks[i].(Single)
			if !ok || got.Resource != want.Resource {
				t.Errorf("checks[%d] = %+v, want check on %s", i, checks[i], want.Resource)
			}
		}
	}
}

func TestOr_FlattensNestedAnyOf(t *testing.T) {
	a, b, c := view("a"), view("b"), view("c")

	left := a.Or(b).Or(c)
	right := a.Or(b.Or(c))

	la, ok := left.(AnyOf)
	if !ok {
		t.Fatalf("(a | b) | c is %T, want AnyOf", left)
	}
	ra, ok := right.(AnyOf)
	if !ok {
		t.Fatalf("a | (b | c) is %T, want AnyOf", right)
	}
	if len(la.Checks) != 3 || len(ra.Checks) != 3 {
		t.Errorf("flattened lengths = %d and %d, want 3 and 3", len(la.Checks), len(ra.Checks))
	}
}

func TestAnd_MixedCompositionNests(t *testing.T) {
	a, b, c := view("a"), view("b"), view("c")

	mixed := a.Or(b).And(c)
	all, ok := mixed.(All)
	if !ok {
		t.Fatalf("(a | b) & c is %T, want All", mixed)
	}
	if len(all.Checks) != 2 {
		t.Fatalf("All.Checks = %d entries, want 2 (the AnyOf must stay nested, not flatten)", len(all.Checks))
	}
	if _, ok := all.Checks[0].(AnyOf); !ok {
		t.Errorf("All.Checks[0] is %T, want the nested AnyOf", all.Checks[0])
	}
}

func TestMergeContext_OverrideWins(t *testing.T) {
	base := entity.Record{"ip": entity.String("10.0.0.1"), "mfa": entity.Bool(false)}
	override := entity.Record{"mfa": entity.Bool(true)}

	merged := mergeContext(base, override)
	if merged["mfa"] != entity.Bool(true) {
		t.Errorf("mfa = %v, want the override value", merged["mfa"])
	}
	if merged["ip"] != entity.String("10.0.0.1") {
		t.Errorf("ip = %v, want the base value preserved", merged["ip"])
	}
}

func TestMergeContext_EmptyOverrideIsIdentity(t *testing.T) {
	base := entity.Record{"ip": entity.String("10.0.0.1")}
	merged := mergeContext(base, nil)
	if len(merged) != len(base) || merged["ip"] != base["ip"] {
		t.Errorf("mergeContext(base, nil) = %v, want %v", merged, base)
	}
}
