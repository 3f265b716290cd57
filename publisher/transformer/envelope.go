// Package transformer provides publisher.Transformer implementations that
// encode feed events for sinks.
package transformer

import (
	"encoding/json"
	"fmt"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/publisher"
	"github.com/rs/zerolog/log"
)

func init() {
	publisher.RegisterTransformer("json", func() publisher.Transformer {
		return NewJSONTransformer()
	})
	publisher.RegisterTransformer("msgpack", func() publisher.Transformer {
		return NewMsgpackTransformer()
	})
}

// Envelope is the sink-facing shape of a feed event. Exactly one of
// Record, Entry and Prune is set, matching Op.
type Envelope struct {
	Op     string               `json:"op" msgpack:"op"`
	TsMs   int64                `json:"ts_ms" msgpack:"ts_ms"`
	Source Source               `json:"source" msgpack:"source"`
	Record *model.Record        `json:"record,omitempty" msgpack:"record,omitempty"`
	Entry  *model.HandlingEntry `json:"entry,omitempty" msgpack:"entry,omitempty"`
	Prune  *model.PruneResult   `json:"prune,omitempty" msgpack:"prune,omitempty"`
}

// Source identifies where an event came from
type Source struct {
	Connector string `json:"connector" msgpack:"connector"`
	Instance  uint64 `json:"instance" msgpack:"instance"`
	Stream    string `json:"stream" msgpack:"stream"`
	Locator   string `json:"locator" msgpack:"locator"`
	Concern   string `json:"concern,omitempty" msgpack:"concern,omitempty"`
	Seq       uint64 `json:"seq" msgpack:"seq"`
}

const connectorName = "recordstream"

// mapOperation maps an event kind to the envelope op code
func mapOperation(kind uint8) string {
	switch kind {
	case publisher.KindRecordWritten:
		return "c"
	case publisher.KindHandlingRecorded:
		return "h"
	case publisher.KindPruned:
		return "p"
	default:
		log.Warn().Uint8("kind", kind).Msg("unknown feed event kind")
		return "?"
	}
}

// NewEnvelope builds the envelope for event
func NewEnvelope(event publisher.FeedEvent) Envelope {
	return Envelope{
		Op:   mapOperation(event.Kind),
		TsMs: event.TimeMS,
		Source: Source{
			Connector: connectorName,
			Instance:  event.InstanceID,
			Stream:    event.Stream,
			Locator:   event.Locator,
			Concern:   event.Concern,
			Seq:       event.SeqNum,
		},
		Record: event.Record,
		Entry:  event.Entry,
		Prune:  event.Prune,
	}
}

// JSONTransformer encodes envelopes as JSON. Record payloads are carried as
// their serialized bytes (base64 for binary formats).
type JSONTransformer struct{}

func NewJSONTransformer() *JSONTransformer {
	return &JSONTransformer{}
}

// Transform converts a feed event to JSON
func (t *JSONTransformer) Transform(event publisher.FeedEvent) ([]byte, error) {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// Tombstone returns nil, the log compaction delete marker
func (t *JSONTransformer) Tombstone(key string) []byte {
	return nil
}
