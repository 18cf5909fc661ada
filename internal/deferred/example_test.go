package deferred_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cedarguard/internal/deferred"
	"cedarguard/internal/engine"
	"cedarguard/internal/entity"
	"cedarguard/internal/fetcher"
	"cedarguard/internal/session"
	"cedarguard/internal/store"
)

// PhotoView demonstrates the generated-style helper constructors a schema
// compiler would emit: `<Domain>.<Action>.on(typed_id)`. A code generator would produce one
// such function per (domain, action) pair declared in a schema; here
// it's hand-written to show the shape.
func PhotoView(id string) deferred.Check {
	return deferred.On(entity.NewUID("Action", "view"), "Photo", id)
}

func TestDeferredCheck_ResolvesDeepParentChain(t *testing.T) {
	org := entity.NewEntity(entity.NewUID("Organization", "org-1"))
	folder2 := entity.NewEntity(entity.NewUID("Folder", "folder-2")).WithParents(org.UID)
	folder1 := entity.NewEntity(entity.NewUID("Folder", "folder-1")).WithParents(folder2.UID)
	doc := entity.NewEntity(entity.NewUID("Document", "d1-deep")).WithParents(folder1.UID)

	byUID := map[entity.UID]*entity.Entity{
		org.UID: org, folder2.UID: folder2, folder1.UID: folder1, doc.UID: doc,
	}
	registry := fetcher.NewRegistry()
	for _, typ := range []string{"Organization", "Folder", "Document"} {
		typ := typ
		registry.Register(typ, fetcher.Func(func(ctx context.Context, id string) (*entity.Entity, error) {
			return byUID[entity.NewUID(typ, id)], nil
		}))
	}
	registry.Register("User", fetcher.Func(func(ctx context.Context, id string) (*entity.Entity, error) {
		return entity.NewEntity(entity.NewUID("User", id)), nil
	}))

	st := store.New(registry)
	eng := engine.New()
	// The permit only fires when the resource's ancestry reaches the
	// organization, so a chain that was not fully resolved would deny.
	require.NoError(t, eng.LoadBytes("test", []byte(
		`permit(principal, action == Action::"read", resource in Organization::"org-1");`,
	)))

	sess := session.New(entity.NewUID("User", "alice"), eng, st)
	check := deferred.On(entity.NewUID("Action", "read"), "Document", "d1-deep")

	resp, err := check.Run(context.Background(), sess)
	require.NoError(t, err)
	assert.True(t, resp.Allowed(), "the deferred check must load folder-1, folder-2, and org-1 so `resource in Organization` holds")
}

func TestDeferredCheck_ResolvesAbsentEntityWithoutFailing(t *testing.T) {
	registry := fetcher.NewRegistry()
	registry.Register("Photo", fetcher.Func(func(ctx context.Context, id string) (*entity.Entity, error) {
		return nil, nil // no photo with this id; the check must not error
	}))
	registry.Register("User", fetcher.Func(func(ctx context.Context, id string) (*entity.Entity, error) {
		return entity.NewEntity(entity.NewUID("User", id)), nil
	}))

	st := store.New(registry)
	eng := engine.New()
	require.NoError(t, eng.LoadBytes("test", []byte(`permit(principal, action, resource);`)))

	sess := session.New(entity.NewUID("User", "alice"), eng, st)

	check := PhotoView("missing.jpg")
	allowed := check.IsAllowed(context.Background(), sess)
	assert.True(t, allowed, "permit-all policy should still allow even when the resource entity was never found")
}
