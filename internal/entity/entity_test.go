package entity

import "testing"

func TestEntities_Merge_IsIdempotent(t *testing.T) {
	es := EntitiesOf(
		NewEntity(NewUID("User", "alice")),
		NewEntity(NewUID("Photo", "p1")),
	)
	merged := es.Merge(es)
	if merged.Size() != es.Size() {
		t.Errorf("Merge(self).Size() = %d, want %d", merged.Size(), es.Size())
	}
}

func TestEntities_Merge_RightBiasedOnCollision(t *testing.T) {
	uid := NewUID("Photo", "p1")
	left := EntitiesOf(NewEntity(uid).WithAttr("title", String("old")))
	right := EntitiesOf(NewEntity(uid).WithAttr("title", String("new")))

	merged := left.Merge(right)
	e, ok := merged.Find(uid)
	if !ok {
		t.Fatalf("Merge result missing %s", uid)
	}
	if got := e.Attrs["title"]; got != String("new") {
		t.Errorf("title = %v, want the right-hand entity to win", got)
	}
}

func TestEntities_Merge_WithEmpty(t *testing.T) {
	es := EntitiesOf(NewEntity(NewUID("User", "alice")))
	if got := es.Merge(NewEntities()).Size(); got != 1 {
		t.Errorf("Merge(empty).Size() = %d, want 1", got)
	}
	if got := NewEntities().Merge(es).Size(); got != 1 {
		t.Errorf("empty.Merge(es).Size() = %d, want 1", got)
	}
}

func TestEntitiesOf_DedupesByUID(t *testing.T) {
	uid := NewUID("User", "alice")
	es := EntitiesOf(NewEntity(uid), NewEntity(uid))
	if es.Size() != 1 {
		t.Errorf("Size() = %d, want 1", es.Size())
	}
}

func TestEntities_OfType(t *testing.T) {
	es := EntitiesOf(
		NewEntity(NewUID("User", "alice")),
		NewEntity(NewUID("User", "bob")),
		NewEntity(NewUID("Photo", "p1")),
	)
	if got := len(es.OfType("User")); got != 2 {
		t.Errorf("OfType(User) = %d entities, want 2", got)
	}
	if got := len(es.OfType("Album")); got != 0 {
		t.Errorf("OfType(Album) = %d entities, want 0", got)
	}
}
