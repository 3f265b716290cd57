package notify

import (
	"sync"
	"sync/atomic"

	"github.com/maxpert/recordstream/telemetry"
)

// defaultSignalBufferSize is the buffer size for signal channels.
// Subscribers that can't keep up will have signals dropped (non-blocking send).
const defaultSignalBufferSize = 16

// Kind says what changed in a stream.
type Kind uint8

const (
	KindRecordAppended Kind = iota + 1
	KindHandlingRecorded
	KindPruned
)

func (k Kind) String() string {
	switch k {
	case KindRecordAppended:
		return "record_appended"
	case KindHandlingRecorded:
		return "handling_recorded"
	case KindPruned:
		return "pruned"
	default:
		return "unknown"
	}
}

// Signal tells a subscriber that a partition changed. It carries ids only;
// subscribers read the data back from the stream.
type Signal struct {
	Stream  string
	Locator string
	Kind    Kind
	ID      int64  // record id for appends, entry id for handling
	Concern string // set for handling signals
}

// Filter specifies which signals a subscriber wants. Empty fields match all.
type Filter struct {
	Streams  []string
	Concerns []string
	Kinds    []Kind
}

type subscription struct {
	id     uint64
	filter Filter
	ch     chan Signal
	closed atomic.Bool
}

func (s *subscription) matches(sig Signal) bool {
	if len(s.filter.Streams) > 0 && !containsString(s.filter.Streams, sig.Stream) {
		return false
	}
	// Concern filters only narrow handling signals
	if len(s.filter.Concerns) > 0 && sig.Kind == KindHandlingRecorded && !containsString(s.filter.Concerns, sig.Concern) {
		return false
	}
	if len(s.filter.Kinds) > 0 {
		for _, k := range s.filter.Kinds {
			if k == sig.Kind {
				return true
			}
		}
		return false
	}
	return true
}

// close closes the subscription channel if not already closed.
func (s *subscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Hub is a thread-safe fan-out of stream change signals.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	nextID        atomic.Uint64
}

// NewHub creates a new notification hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[uint64]*subscription),
	}
}

// Signal sends sig to all matching subscribers (non-blocking).
func (h *Hub) Signal(sig Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscriptions {
		if !sub.matches(sig) {
			continue
		}

		select {
		case sub.ch <- sig:
		default:
			// Buffer full, skip this subscriber
		}
	}
}

// Subscribe creates a new subscription and returns the signal channel and cancel function.
// The returned channel is buffered. If the subscriber cannot keep up with the signal rate,
// signals will be dropped silently by Signal(). The cancel function is idempotent.
func (h *Hub) Subscribe(filter Filter) (<-chan Signal, func()) {
	sub := &subscription{
		id:     h.nextID.Add(1),
		filter: filter,
		ch:     make(chan Signal, defaultSignalBufferSize),
	}

	h.mu.Lock()
	h.subscriptions[sub.id] = sub
	count := len(h.subscriptions)
	h.mu.Unlock()
	telemetry.NotifySubscribers.Set(float64(count))

	cancel := func() {
		h.unsubscribe(sub.id)
	}

	return sub.ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// unsubscribe removes a subscription and closes its channel.
func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	sub, ok := h.subscriptions[id]
	if ok {
		delete(h.subscriptions, id)
	}
	count := len(h.subscriptions)
	h.mu.Unlock()

	if ok {
		sub.close()
		telemetry.NotifySubscribers.Set(float64(count))
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
