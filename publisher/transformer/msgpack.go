package transformer

import (
	"fmt"

	"github.com/maxpert/recordstream/encoding"
	"github.com/maxpert/recordstream/publisher"
)

// MsgpackTransformer encodes envelopes as msgpack
type MsgpackTransformer struct{}

func NewMsgpackTransformer() *MsgpackTransformer {
	return &MsgpackTransformer{}
}

// Transform converts a feed event to msgpack
func (t *MsgpackTransformer) Transform(event publisher.FeedEvent) ([]byte, error) {
	env := NewEnvelope(event)
	data, err := encoding.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal msgpack: %w", err)
	}
	return data, nil
}

// Tombstone returns nil, the log compaction delete marker
func (t *MsgpackTransformer) Tombstone(key string) []byte {
	return nil
}
