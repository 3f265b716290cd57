// Package publisher is the change feed of record streams.
//
// A Registry is installed as the stream.Observer of every stream. Each
// record write, handling entry and prune becomes a FeedEvent appended to a
// durable, ordered PublishLog backed by Pebble. One Worker per configured
// sink reads the log from its own cursor, filters by stream and concern,
// transforms the event and publishes it with exponential backoff.
//
// # PublishLog
//
// Events get monotonically increasing sequence numbers. Each sink's cursor
// is the last sequence it delivered, so delivery is at least once:
//
//   - Crash recovery (cursors and the sequence persist in Pebble)
//   - Independent sinks consuming at different rates
//   - Cleanup of events every sink has delivered, every 128 sequences
//   - Age based retention (DropBefore) that applies regardless of cursors
//
// Key layout:
//
//	/feed/{seq:016x}    -> msgpack(FeedEvent)
//	/cursor/{sinkName}  -> uint64 (last delivered seq)
//	/seq                -> uint64 (last assigned seq)
//
// # Topics and keys
//
// Events are published to {topic_prefix}.{stream}.{records|handling|prunes}
// keyed by {stream}/{locator}/{recordID}, so every event about one record
// lands in the same Kafka partition. A prune event is followed by a nil
// tombstone on the records topic for each removed record.
//
// # Filters
//
// GlobFilter matches stream names and handling concerns:
//
//	filter, err := NewGlobFilter(
//		[]string{"orders*"},         // stream patterns
//		[]string{"billing", "ship*"}, // concern patterns
//	)
//
// Events without a concern (records, prunes) are matched on the stream only.
package publisher
