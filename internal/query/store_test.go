package query

import (
	"testing"
	"time"
)

func TestStoreLookupStaleness(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	key := NewKey("transactions", "list")
	s.set(key, "v1", 30*time.Second)

	if v, ok := s.lookup(key); !ok || v != "v1" {
		t.Fatalf("fresh lookup = %v, %v", v, ok)
	}

	// Past the staleness window the entry no longer serves reads
	now = now.Add(31 * time.Second)
	if _, ok := s.lookup(key); ok {
		t.Fatal("expired entry should not be served")
	}
	// but is still peekable until swept
	if v, ok := s.peek(key); !ok || v != "v1" {
		t.Fatal("expired entry should remain peekable")
	}

	if removed := s.sweepExpired(); removed != 1 {
		t.Fatalf("sweepExpired = %d, want 1", removed)
	}
	if s.Size() != 0 {
		t.Fatalf("Size = %d after sweep", s.Size())
	}
}

func TestInvalidatePrefixReachesDerivedKeys(t *testing.T) {
	s := NewStore()

	all := NewKey("transactions")
	list1 := all.Child("list").WithFilters(map[string]string{"page": "1"})
	list2 := all.Child("list").WithFilters(map[string]string{"page": "2", "type": "income"})
	other := NewKey("categories")

	s.set(list1, "a", time.Minute)
	s.set(list2, "b", time.Minute)
	s.set(other, "c", time.Minute)

	s.Invalidate(all)

	if _, ok := s.lookup(list1); ok {
		t.Fatal("derived key survived resource invalidation")
	}
	if _, ok := s.lookup(list2); ok {
		t.Fatal("derived key with filters survived resource invalidation")
	}
	if _, ok := s.lookup(other); !ok {
		t.Fatal("unrelated resource was invalidated")
	}
}

func TestInvalidateNotifiesWatchersUnderPrefix(t *testing.T) {
	s := NewStore()

	hit := make(chan string, 4)
	idTx := s.register(NewKey("transactions", "list", "page=1"), func() { hit <- "tx" })
	defer s.unregister(NewKey("transactions", "list", "page=1"), idTx)
	idCat := s.register(NewKey("categories"), func() { hit <- "cat" })
	defer s.unregister(NewKey("categories"), idCat)

	s.Invalidate(NewKey("transactions"), NewKey("dashboard"))

	select {
	case got := <-hit:
		if got != "tx" {
			t.Fatalf("unexpected watcher fired: %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transactions watcher was not notified")
	}
	select {
	case got := <-hit:
		t.Fatalf("extra watcher fired: %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResetDropsEverything(t *testing.T) {
	s := NewStore()
	s.set(NewKey("transactions"), "a", time.Minute)
	s.set(NewKey("session"), "b", time.Minute)

	s.Reset()

	if s.Size() != 0 {
		t.Fatalf("Size = %d after reset", s.Size())
	}
}

func TestSweeperLifecycle(t *testing.T) {
	s := NewStore()
	s.StartSweeper(10 * time.Millisecond)
	s.StartSweeper(10 * time.Millisecond) // second start is a no-op
	s.Close()
	s.Close() // idempotent
}
