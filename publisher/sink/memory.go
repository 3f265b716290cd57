package sink

import (
	"sync"

	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/publisher"
)

func init() {
	publisher.RegisterSink("memory", memoryFactory)
}

func memoryFactory(config cfg.SinkConfiguration) (publisher.Sink, error) {
	return NewMemorySink(config.BatchSize * 10), nil
}

// DefaultMemorySinkCapacity bounds a MemorySink created without a capacity
const DefaultMemorySinkCapacity = 1000

// MemorySink keeps the most recent messages in process. It backs the
// "memory" sink type and is used by tests.
type MemorySink struct {
	mu         sync.Mutex
	messages   []Message
	capacity   int
	PublishErr error
}

// Message is one published message
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// NewMemorySink keeps up to capacity messages, dropping the oldest
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultMemorySinkCapacity
	}
	return &MemorySink{capacity: capacity}
}

// Publish records a message unless PublishErr is set
func (m *MemorySink) Publish(topic, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}

	var v []byte
	if value != nil {
		v = append([]byte(nil), value...)
	}
	m.messages = append(m.messages, Message{Topic: topic, Key: key, Value: v})
	if over := len(m.messages) - m.capacity; over > 0 {
		m.messages = append(m.messages[:0], m.messages[over:]...)
	}
	return nil
}

// Messages returns a copy of the retained messages, oldest first
func (m *MemorySink) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Reset clears all retained messages
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

// Close is a no-op
func (m *MemorySink) Close() error {
	return nil
}
