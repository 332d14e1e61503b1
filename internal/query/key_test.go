package query

import "testing"

func TestKeyFiltersOrderIndependent(t *testing.T) {
	base := NewKey("transactions", "list")

	a := base.WithFilters(map[string]string{
		"page":      "1",
		"type":      "expense",
		"startDate": "2025-01-01",
	})
	b := base.WithFilters(map[string]string{
		"startDate": "2025-01-01",
		"type":      "expense",
		"page":      "1",
	})
	if a.String() != b.String() {
		t.Fatalf("identical filters produced different keys: %q vs %q", a, b)
	}
}

func TestKeyFiltersOmitEmpty(t *testing.T) {
	base := NewKey("transactions", "list")
	with := base.WithFilters(map[string]string{"page": "1", "categoryId": ""})
	without := base.WithFilters(map[string]string{"page": "1"})
	if with.String() != without.String() {
		t.Fatalf("empty filter changed the key: %q vs %q", with, without)
	}
}

func TestKeyFilterValuesCannotForgeSegments(t *testing.T) {
	base := NewKey("transactions", "list")

	// a value containing the separators must not read as extra segments
	forged := base.WithFilters(map[string]string{"a": "x/b=y"})
	honest := base.WithFilters(map[string]string{"a": "x", "b": "y"})
	if forged.String() == honest.String() {
		t.Fatalf("distinct filter sets collided on %q", forged)
	}

	// escaping must stay deterministic
	again := base.WithFilters(map[string]string{"a": "x/b=y"})
	if forged.String() != again.String() {
		t.Fatalf("same filters produced different keys: %q vs %q", forged, again)
	}
}

func TestKeyPrefix(t *testing.T) {
	all := NewKey("transactions")
	list := all.Child("list").WithFilters(map[string]string{"page": "2"})

	if !list.HasPrefix(all) {
		t.Fatalf("%q should derive from %q", list, all)
	}
	if list.HasPrefix(NewKey("categories")) {
		t.Fatalf("%q should not match a different resource", list)
	}
	if all.HasPrefix(list) {
		t.Fatal("prefix relation must not be symmetric")
	}
}

func TestDistinctResourcesNeverSharePrefix(t *testing.T) {
	resources := []Key{
		NewKey("transactions"),
		NewKey("categories"),
		NewKey("dashboard"),
		NewKey("session"),
	}
	for i, a := range resources {
		for j, b := range resources {
			if i == j {
				continue
			}
			if a.HasPrefix(b) || b.HasPrefix(a) {
				t.Fatalf("resources %q and %q share a prefix", a, b)
			}
		}
	}
}
