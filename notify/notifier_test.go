package notify

import (
	"sync"
	"testing"
	"time"
)

func appended(stream string, id int64) Signal {
	return Signal{Stream: stream, Locator: "p0", Kind: KindRecordAppended, ID: id}
}

func TestHub_BasicSubscribeSignal(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe(Filter{})
	defer cancel()

	hub.Signal(appended("orders", 1))

	select {
	case sig := <-signals:
		if sig.Stream != "orders" || sig.ID != 1 || sig.Kind != KindRecordAppended {
			t.Errorf("expected (orders, 1, appended), got %+v", sig)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for signal")
	}
}

func TestHub_FilterStreams(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe(Filter{Streams: []string{"s1", "s3"}})
	defer cancel()

	hub.Signal(appended("s1", 1))
	hub.Signal(appended("s2", 2)) // filtered out
	hub.Signal(appended("s3", 3))

	received := make(map[string]int64)
	for i := 0; i < 2; i++ {
		select {
		case sig := <-signals:
			received[sig.Stream] = sig.ID
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for signal %d", i+1)
		}
	}

	if received["s1"] != 1 || received["s3"] != 3 {
		t.Errorf("received unexpected signals: %v", received)
	}

	select {
	case sig := <-signals:
		t.Errorf("should not receive signal, got %+v", sig)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FilterConcernsAndKinds(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe(Filter{
		Concerns: []string{"billing"},
		Kinds:    []Kind{KindHandlingRecorded},
	})
	defer cancel()

	hub.Signal(appended("s", 1))
	hub.Signal(Signal{Stream: "s", Kind: KindHandlingRecorded, ID: 1, Concern: "shipping"})
	hub.Signal(Signal{Stream: "s", Kind: KindHandlingRecorded, ID: 2, Concern: "billing"})

	select {
	case sig := <-signals:
		if sig.Concern != "billing" || sig.ID != 2 {
			t.Errorf("expected billing entry 2, got %+v", sig)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for signal")
	}

	select {
	case sig := <-signals:
		t.Errorf("should not receive signal, got %+v", sig)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe(Filter{})

	hub.Signal(appended("s", 1))

	select {
	case <-signals:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for signal")
	}

	cancel()

	select {
	case _, ok := <-signals:
		if ok {
			t.Error("channel should be closed after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}

	// Subsequent signals should not panic
	hub.Signal(appended("s", 2))
	if hub.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Subscribers())
	}
}

func TestHub_ConcurrentSignalSubscribe(t *testing.T) {
	hub := NewHub()
	const numGoroutines = 10
	const numSignals = 100

	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			signals, cancel := hub.Subscribe(Filter{})
			defer cancel()

			received := 0
			timeout := time.After(2 * time.Second)
			for received < numSignals {
				select {
				case <-signals:
					received++
				case <-timeout:
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numSignals; i++ {
			hub.Signal(appended("s", int64(i)))
		}
	}()

	wg.Wait()
}

func TestHub_BufferOverflowNonBlocking(t *testing.T) {
	hub := NewHub()

	signals, cancel := hub.Subscribe(Filter{})
	defer cancel()

	for i := 0; i < 20; i++ {
		hub.Signal(appended("s", int64(i)))
	}

	received := 0
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case <-signals:
			received++
		case <-timeout:
			if received != defaultSignalBufferSize {
				t.Errorf("expected %d buffered signals, got %d", defaultSignalBufferSize, received)
			}
			return
		}
	}
}

func TestHub_DoubleCancel(t *testing.T) {
	hub := NewHub()

	_, cancel := hub.Subscribe(Filter{})
	cancel()
	cancel()
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		KindRecordAppended:   "record_appended",
		KindHandlingRecorded: "handling_recorded",
		KindPruned:           "pruned",
		Kind(0):              "unknown",
	}
	for k, want := range tests {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
