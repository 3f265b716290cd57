package filter

import (
	"fmt"
	"sync"
	"testing"
)

func TestIDFilter_BasicOperations(t *testing.T) {
	f := NewIDFilter(1024)

	if f.MightContain("order-1") {
		t.Error("empty filter should not contain order-1")
	}

	f.Add("order-1")
	if !f.MightContain("order-1") {
		t.Error("filter should contain order-1 after add")
	}
	if f.MightContain("order-2") {
		t.Error("filter should not contain order-2")
	}
}

func TestIDFilter_AddIsIdempotent(t *testing.T) {
	f := NewIDFilter(1024)
	for i := 0; i < 50; i++ {
		f.Add("same")
	}
	if f.Size() != 1 {
		t.Errorf("expected size 1, got %d", f.Size())
	}
	if f.Saturated() {
		t.Error("repeated adds of one id must not saturate the filter")
	}
}

func TestIDFilter_Rebuild(t *testing.T) {
	f := NewIDFilter(1024)
	f.Add("a")
	f.Add("b")

	f.Rebuild([]string{"b", "c"})

	if f.MightContain("a") {
		t.Error("a should be gone after rebuild")
	}
	if !f.MightContain("b") || !f.MightContain("c") {
		t.Error("b and c should be present after rebuild")
	}
	if f.Size() != 2 {
		t.Errorf("expected size 2, got %d", f.Size())
	}
}

func TestIDFilter_Concurrent(t *testing.T) {
	f := NewIDFilter(1 << 16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("g%d-%d", g, i)
				f.Add(id)
				if !f.MightContain(id) {
					t.Errorf("missing %s right after add", id)
				}
			}
		}(g)
	}
	wg.Wait()
}
