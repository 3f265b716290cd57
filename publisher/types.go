package publisher

import "github.com/maxpert/recordstream/model"

// Event kinds carried by the change feed
const (
	KindRecordWritten    uint8 = 0
	KindHandlingRecorded uint8 = 1
	KindPruned           uint8 = 2
)

// KindName returns the topic segment for an event kind
func KindName(kind uint8) string {
	switch kind {
	case KindRecordWritten:
		return "records"
	case KindHandlingRecorded:
		return "handling"
	case KindPruned:
		return "prunes"
	default:
		return "unknown"
	}
}

// FeedEvent is one stream change queued for publishing
type FeedEvent struct {
	SeqNum     uint64               `msgpack:"seq"`               // Monotonic sequence
	InstanceID uint64               `msgpack:"inst"`              // Originating process
	Stream     string               `msgpack:"stream"`            // Stream name
	Locator    string               `msgpack:"loc"`               // Partition key
	Kind       uint8                `msgpack:"kind"`              // 0=record, 1=handling, 2=prune
	Concern    string               `msgpack:"concern,omitempty"` // Set for handling events
	TimeMS     int64                `msgpack:"ts"`                // Event time (unix ms)
	Record     *model.Record        `msgpack:"rec,omitempty"`
	Entry      *model.HandlingEntry `msgpack:"entry,omitempty"`
	Prune      *model.PruneResult   `msgpack:"prune,omitempty"`
}

// Key is the partitioning key sinks use for the event
func (e FeedEvent) Key() string {
	return EventKey(e.Stream, e.Locator, e.RecordID())
}

// RecordID returns the record the event is about, or 0 for prunes
func (e FeedEvent) RecordID() int64 {
	switch {
	case e.Record != nil:
		return e.Record.InternalRecordID
	case e.Entry != nil:
		return e.Entry.InternalRecordID
	}
	return 0
}

// Sink represents a destination for feed events (e.g., Kafka, NATS)
type Sink interface {
	// Publish sends an event to the sink
	Publish(topic string, key string, value []byte) error
	// Close releases any resources held by the sink
	Close() error
}

// Transformer converts feed events to sink-specific formats
type Transformer interface {
	// Transform converts an event to bytes for publishing
	Transform(event FeedEvent) ([]byte, error)
	// Tombstone creates a delete marker for the given key
	Tombstone(key string) []byte
}

// Filter determines whether a feed event should be published
type Filter interface {
	// Match returns true if the event should be published. Concern is
	// empty for record and prune events.
	Match(stream, concern string) bool
}
