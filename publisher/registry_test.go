package publisher

import (
	"testing"
	"time"

	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// registrySinks collects the sinks created by the "test" factory
var registrySinks = make(chan *mockSink, 16)

func init() {
	// sink and transformer packages import publisher, so tests register
	// their own factories
	RegisterSink("test", func(config cfg.SinkConfiguration) (Sink, error) {
		s := &mockSink{}
		registrySinks <- s
		return s, nil
	})
	RegisterTransformer("test", func() Transformer {
		return &mockTransformer{}
	})
}

func testSinkConfig(name string) cfg.SinkConfiguration {
	return cfg.SinkConfiguration{
		Name:           name,
		Type:           "test",
		Format:         "test",
		TopicPrefix:    "rs",
		PollIntervalMS: 10,
		RetryInitialMS: 10,
	}
}

func TestNewRegistry(t *testing.T) {
	t.Run("creates registry without sinks", func(t *testing.T) {
		registry, err := NewRegistry(RegistryConfig{DataDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, registry.Log())
		assert.Empty(t, registry.Workers())
		require.NoError(t, registry.Start())
		registry.Stop()
	})

	t.Run("requires data directory", func(t *testing.T) {
		registry, err := NewRegistry(RegistryConfig{})
		assert.Nil(t, registry)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data directory is required")
	})

	t.Run("rejects unknown sink type", func(t *testing.T) {
		sc := testSinkConfig("bad")
		sc.Type = "carrier-pigeon"
		_, err := NewRegistry(RegistryConfig{DataDir: t.TempDir(), SinkConfigs: []cfg.SinkConfiguration{sc}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown sink type")
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		sc := testSinkConfig("bad")
		sc.Format = "xml"
		_, err := NewRegistry(RegistryConfig{DataDir: t.TempDir(), SinkConfigs: []cfg.SinkConfiguration{sc}})
		<-registrySinks
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})

	t.Run("rejects invalid filter", func(t *testing.T) {
		sc := testSinkConfig("bad")
		sc.FilterStreams = []string{"orders["}
		_, err := NewRegistry(RegistryConfig{DataDir: t.TempDir(), SinkConfigs: []cfg.SinkConfiguration{sc}})
		<-registrySinks
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create filter")
	})
}

func TestRegistryLifecycle(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	assert.Error(t, registry.Append([]FeedEvent{testRecordEvent(1, testEpoch)}), "append before start")

	require.NoError(t, registry.Start())
	assert.Error(t, registry.Start(), "double start")

	registry.Stop()
	registry.Stop()
}

func TestRegistryObserverDeliversToSinks(t *testing.T) {
	sc := testSinkConfig("orders-only")
	sc.FilterStreams = []string{"orders"}
	sc.FilterConcerns = []string{"billing"}

	registry, err := NewRegistry(RegistryConfig{
		DataDir:     t.TempDir(),
		InstanceID:  7,
		SinkConfigs: []cfg.SinkConfiguration{sc},
	})
	require.NoError(t, err)
	sink := <-registrySinks

	require.NoError(t, registry.Start())
	defer registry.Stop()

	id := "o-1"
	rec := model.Record{
		InternalRecordID: 1,
		Metadata:         model.RecordMetadata{StringSerializedID: &id, TimestampUTC: testEpoch},
	}
	registry.RecordWritten("orders", "p0", rec)
	registry.RecordWritten("audit", "p0", rec)
	registry.HandlingRecorded("orders", "p0", model.HandlingEntry{InternalRecordID: 1, Concern: "shipping", Status: model.HandlingStatusRunning, TimestampUTC: testEpoch})
	registry.HandlingRecorded("orders", "p0", model.HandlingEntry{InternalRecordID: 1, Concern: "billing", Status: model.HandlingStatusRunning, TimestampUTC: testEpoch})
	registry.Pruned("orders", "p0", model.PruneResult{RecordsRemoved: 1, RemovedRecordIDs: []int64{1}})

	// record, billing entry, prune, tombstone
	waitForEvents(t, sink, 4, 2*time.Second)
	workers := registry.Workers()
	require.Len(t, workers, 1)
	waitForCursor(t, workers[0], 5, 2*time.Second)

	published := sink.getEvents()
	require.Len(t, published, 4)
	assert.Equal(t, "rs.orders.records", published[0].topic)
	assert.Equal(t, "rs.orders.handling", published[1].topic)
	assert.Equal(t, "rs.orders.prunes", published[2].topic)
	assert.Equal(t, "rs.orders.records", published[3].topic)
	assert.Nil(t, published[3].value)

	events, err := registry.Log().ReadFrom(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for _, e := range events {
		assert.Equal(t, uint64(7), e.InstanceID)
	}
}

func TestRegistryAddSinkWhileRunning(t *testing.T) {
	registry, err := NewRegistry(RegistryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, registry.Start())
	defer registry.Stop()

	require.NoError(t, registry.Append([]FeedEvent{testRecordEvent(1, testEpoch)}))

	require.NoError(t, registry.AddSink(testSinkConfig("late")))
	sink := <-registrySinks

	// a new sink starts from the beginning of the retained log
	waitForEvents(t, sink, 1, 2*time.Second)
}

func TestRegistryApplyRetention(t *testing.T) {
	now := testEpoch.Add(48 * time.Hour)
	registry, err := NewRegistry(RegistryConfig{
		DataDir:   t.TempDir(),
		Retention: 24 * time.Hour,
		Clock:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NoError(t, registry.Start())
	defer registry.Stop()

	events := []FeedEvent{
		testRecordEvent(1, testEpoch),
		testRecordEvent(2, now.Add(-time.Hour)),
	}
	require.NoError(t, registry.Append(events))

	registry.ApplyRetention()

	left, err := registry.Log().ReadFrom(0, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(2), left[0].RecordID())
}

func TestCreateSinkAndTransformer(t *testing.T) {
	_, err := createSink(cfg.SinkConfiguration{Type: "nope"})
	assert.Error(t, err)

	_, err = createTransformer("nope")
	assert.Error(t, err)

	trans, err := createTransformer("test")
	require.NoError(t, err)
	assert.IsType(t, &mockTransformer{}, trans)
}
