package ids

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestNewProducesUniqueSortableIDs(t *testing.T) {
	const n = 200
	got := make([]string, 0, n)
	for i := 0; i < n; i++ {
		got = append(got, New())
	}

	seen := make(map[string]struct{}, n)
	for _, id := range got {
		if len(id) != 26 {
			t.Fatalf("id %q has length %d, want 26", id, len(id))
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	if !sort.StringsAreSorted(got) {
		t.Fatal("ids generated in sequence are not lexicographically ordered")
	}
}

func TestNewIsSafeForConcurrentUse(t *testing.T) {
	const workers = 8
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := New()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestNewAtAnchorsTimestamp(t *testing.T) {
	earlier := NewAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if earlier >= later {
		t.Fatalf("earlier id %q does not sort before %q", earlier, later)
	}

	// Epoch-anchored ids, as seeding produces, sort ahead of current ones.
	if seeded := NewAt(time.Unix(0, 0)); seeded >= New() {
		t.Fatalf("epoch-anchored id %q does not sort before a fresh id", seeded)
	}
}
