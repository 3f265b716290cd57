package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/memory"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu                       sync.Mutex
	records, entries, prunes int
}

func (c *countingObserver) RecordWritten(string, string, model.Record) {
	c.mu.Lock()
	c.records++
	c.mu.Unlock()
}

func (c *countingObserver) HandlingRecorded(string, string, model.HandlingEntry) {
	c.mu.Lock()
	c.entries++
	c.mu.Unlock()
}

func (c *countingObserver) Pruned(string, string, model.PruneResult) {
	c.mu.Lock()
	c.prunes++
	c.mu.Unlock()
}

func TestObserversFanOutToLog(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	counting := &countingObserver{}

	s, err := memory.New("alpha", memory.Options{
		LocatorProtocol: model.NewSingleLocatorProtocol("p0"),
		Reducer:         handling.UnresolvedFirst(),
		Observer: stream.Observers{
			stream.NewLogObserver(zerolog.New(&buf).Level(zerolog.DebugLevel)),
			counting,
		},
	})
	require.NoError(t, err)
	_, err = s.CreateStream(ctx, model.CreateStreamRequest{OnExisting: model.ExistingStreamThrow})
	require.NoError(t, err)

	res, err := s.Put(ctx, model.PutRequest{
		Metadata: model.RecordMetadata{StringSerializedID: strPtr("inv-1")},
		Payload:  model.Payload{Format: model.SerializationFormatString, Text: "{}"},
	})
	require.NoError(t, err)
	id := *res.NewInternalRecordID

	rec, err := s.TryHandle(ctx, model.TryHandleRequest{Concern: "billing"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NoError(t, s.CompleteRunning(ctx, model.HandlingRequest{InternalRecordID: id, Concern: "billing"}))
	require.NoError(t, s.Block(ctx, model.BlockRequest{Details: "deploy"}))
	_, err = s.PruneBeforeID(ctx, model.PruneRequest{BeforeID: id + 1})
	require.NoError(t, err)

	var messages []string
	var gate map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		msg := entry["message"].(string)
		messages = append(messages, msg)
		if msg == "Handling gate changed" {
			gate = entry
		}
	}

	assert.Equal(t, []string{
		"Record written",
		"Handling recorded",
		"Handling recorded",
		"Handling finished",
		"Handling gate changed",
		"Partition pruned",
	}, messages)
	require.NotNil(t, gate)
	assert.Equal(t, true, gate["blocked"])
	assert.Equal(t, "deploy", gate["details"])

	assert.Equal(t, 1, counting.records)
	assert.Equal(t, 4, counting.entries)
	assert.Equal(t, 1, counting.prunes)
}
