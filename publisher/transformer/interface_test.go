package transformer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/maxpert/recordstream/encoding"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ publisher.Transformer = (*JSONTransformer)(nil)
	_ publisher.Transformer = (*MsgpackTransformer)(nil)
)

func sampleRecord() model.Record {
	id := "inv-7"
	return model.Record{
		InternalRecordID: 7,
		Metadata: model.RecordMetadata{
			StringSerializedID: &id,
			Tags:               model.Tags("region", "eu"),
			TimestampUTC:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Payload: model.Payload{
			Serializer: model.SerializerRepresentation{Kind: model.SerializationKindJSON},
			Format:     model.SerializationFormatString,
			Text:       `{"total":10}`,
		},
	}
}

func TestJSONTransformerRecord(t *testing.T) {
	event := publisher.RecordEvent(9, "invoices", "p0", sampleRecord())
	event.SeqNum = 42

	data, err := NewJSONTransformer().Transform(event)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "c", got["op"])

	source := got["source"].(map[string]any)
	assert.Equal(t, "recordstream", source["connector"])
	assert.Equal(t, "invoices", source["stream"])
	assert.Equal(t, "p0", source["locator"])
	assert.Equal(t, float64(42), source["seq"])
	assert.Equal(t, float64(9), source["instance"])

	record := got["record"].(map[string]any)
	assert.Equal(t, float64(7), record["internalRecordId"])
	assert.NotContains(t, got, "entry")
	assert.NotContains(t, got, "prune")
}

func TestJSONTransformerHandlingStatusAsText(t *testing.T) {
	entry := model.HandlingEntry{
		InternalHandlingEntryID: 3,
		InternalRecordID:        7,
		Concern:                 "billing",
		Status:                  model.HandlingStatusRunning,
		TimestampUTC:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := NewJSONTransformer().Transform(publisher.HandlingEvent(1, "invoices", "p0", entry))
	require.NoError(t, err)

	var got struct {
		Op     string `json:"op"`
		Source Source `json:"source"`
		Entry  struct {
			Status string `json:"status"`
		} `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "h", got.Op)
	assert.Equal(t, "billing", got.Source.Concern)
	assert.Equal(t, "Running", got.Entry.Status)
}

func TestMsgpackTransformerRoundTrip(t *testing.T) {
	result := model.PruneResult{RecordsRemoved: 2, HandlingEntriesRemoved: 3, RemovedRecordIDs: []int64{1, 2}}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := publisher.PruneEvent(1, "invoices", "p0", result, now)

	data, err := NewMsgpackTransformer().Transform(event)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, encoding.Unmarshal(data, &env))
	assert.Equal(t, "p", env.Op)
	assert.Equal(t, now.UnixMilli(), env.TsMs)
	require.NotNil(t, env.Prune)
	assert.Equal(t, result, *env.Prune)
	assert.Nil(t, env.Record)
}

func TestTombstonesAreNil(t *testing.T) {
	assert.Nil(t, NewJSONTransformer().Tombstone("k"))
	assert.Nil(t, NewMsgpackTransformer().Tombstone("k"))
}
