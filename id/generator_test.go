package id

import (
	"sync"
	"testing"
)

func TestSequence_StartsAfterSeed(t *testing.T) {
	seq := NewSequence(0)
	if got := seq.NextID(); got != 1 {
		t.Fatalf("expected first id 1, got %d", got)
	}
	if got := seq.Last(); got != 1 {
		t.Fatalf("expected last id 1, got %d", got)
	}

	seq = NewSequence(41)
	if got := seq.NextID(); got != 42 {
		t.Fatalf("expected first id 42, got %d", got)
	}
}

func TestSequence_Monotonic(t *testing.T) {
	seq := NewSequence(0)

	var prev int64
	const iterations = 1000

	for i := 0; i < iterations; i++ {
		id := seq.NextID()
		if id <= prev {
			t.Fatalf("non-monotonic ID at iteration %d: prev=%d, curr=%d", i, prev, id)
		}
		prev = id
	}
}

func TestSequence_Concurrent(t *testing.T) {
	seq := NewSequence(0)

	const goroutines = 10
	const idsPerGoroutine = 1000

	var wg sync.WaitGroup
	idsChan := make(chan int64, goroutines*idsPerGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < idsPerGoroutine; i++ {
				idsChan <- seq.NextID()
			}
		}()
	}

	wg.Wait()
	close(idsChan)

	seen := make(map[int64]bool)
	for id := range idsChan {
		if seen[id] {
			t.Fatalf("duplicate ID in concurrent test: %d", id)
		}
		if id < 1 || id > goroutines*idsPerGoroutine {
			t.Fatalf("ID %d outside 1..%d", id, goroutines*idsPerGoroutine)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Fatalf("expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}
