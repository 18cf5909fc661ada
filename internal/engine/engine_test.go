package engine

import (
	"context"
	"testing"

	"cedarguard/internal/entity"
)

const testPolicies = `
permit(
    principal,
    action == Action::"view",
    resource
)
when {
    resource has owner && resource.owner == principal
};

permit(
    principal,
    action,
    resource
)
when {
    principal has role && principal.role == "admin"
};
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New()
	if err := e.LoadBytes("test.cedar", []byte(testPolicies)); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	return e
}

func TestEngine_Authorize_AllowsOwner(t *testing.T) {
	e := newTestEngine(t)

	owner := entity.NewUID("User", "alice")
	photo := entity.NewEntity(entity.NewUID("Photo", "vacation.jpg")).
		WithAttr("owner", entity.EntityRef(owner))

	entities := entity.EntitiesOf(photo)
	resp, err := e.Authorize(context.Background(), Request{
		Principal: owner,
		Action:    entity.NewUID("Action", "view"),
		Resource:  photo.UID,
	}, entities)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !resp.Allowed() {
		t.Errorf("Authorize decision = %v, want Allow (owner viewing own photo)", resp.Decision)
	}
}

func TestEngine_Authorize_DeniesNonOwner(t *testing.T) {
	e := newTestEngine(t)

	owner := entity.NewUID("User", "alice")
	stranger := entity.NewUID("User", "mallory")
	photo := entity.NewEntity(entity.NewUID("Photo", "vacation.jpg")).
		WithAttr("owner", entity.EntityRef(owner))

	resp, err := e.Authorize(context.Background(), Request{
		Principal: stranger,
		Action:    entity.NewUID("Action", "view"),
		Resource:  photo.UID,
	}, entity.EntitiesOf(photo))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if resp.Allowed() {
		t.Error("Authorize decision = Allow, want Deny (non-owner viewing another's photo)")
	}
}

func TestEngine_Authorize_AdminOverride(t *testing.T) {
	e := newTestEngine(t)

	admin := entity.NewEntity(entity.NewUID("User", "root")).WithAttr("role", entity.String("admin"))
	photo := entity.NewEntity(entity.NewUID("Photo", "vacation.jpg")).
		WithAttr("owner", entity.EntityRef(entity.NewUID("User", "alice")))

	resp, err := e.Authorize(context.Background(), Request{
		Principal: admin.UID,
		Action:    entity.NewUID("Action", "delete"),
		Resource:  photo.UID,
	}, entity.EntitiesOf(admin, photo))
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !resp.Allowed() {
		t.Errorf("Authorize decision = %v, want Allow (admin role overrides ownership)", resp.Decision)
	}
}

func TestEngine_Authorize_NoPolicySetLoaded(t *testing.T) {
	e := New()
	_, err := e.Authorize(context.Background(), Request{
		Principal: entity.NewUID("User", "alice"),
		Action:    entity.NewUID("Action", "view"),
		Resource:  entity.NewUID("Photo", "x"),
	}, entity.NewEntities())
	if err == nil {
		t.Fatal("Authorize: want error when no policy set has been loaded, got nil")
	}
}

func TestEngine_LoadBytes_RejectsMalformedPolicy(t *testing.T) {
	e := New()
	err := e.LoadBytes("bad.cedar", []byte("this is not cedar"))
	if err == nil {
		t.Fatal("LoadBytes: want parse error for malformed policy source, got nil")
	}
}

func TestEngine_AllowedActions_FiltersToPermitted(t *testing.T) {
	e := newTestEngine(t)

	owner := entity.NewUID("User", "alice")
	photo := entity.NewEntity(entity.NewUID("Photo", "vacation.jpg")).
		WithAttr("owner", entity.EntityRef(owner))

	candidates := []entity.UID{
		entity.NewUID("Action", "view"),
		entity.NewUID("Action", "delete"),
	}
	allowed, err := e.AllowedActions(context.Background(), owner, photo.UID, candidates, entity.EntitiesOf(photo))
	if err != nil {
		t.Fatalf("AllowedActions: %v", err)
	}
	if len(allowed) != 1 || allowed[0] != candidates[0] {
		t.Errorf("AllowedActions = %v, want only [%v]", allowed, candidates[0])
	}
}
