package telemetry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsProvider reports totals for one stream
type StatsProvider interface {
	Totals() (records, handlingEntries, blockedPartitions int, err error)
}

// StreamLister enumerates the streams to sample
type StreamLister interface {
	ListStreams() []string
	GetStream(name string) StatsProvider
}

// MetricsCollector periodically samples stream totals into gauges
type MetricsCollector struct {
	lister   StreamLister
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(lister StreamLister, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		lister:   lister,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection
func (mc *MetricsCollector) Start() {
	mc.wg.Add(1)
	go mc.collectLoop()
}

// Stop stops the collector
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MetricsCollector) collectLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()

	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.lister == nil {
		return
	}

	for _, name := range mc.lister.ListStreams() {
		provider := mc.lister.GetStream(name)
		if provider == nil {
			continue
		}

		records, entries, blocked, err := provider.Totals()
		if err != nil {
			// Streams that were deleted or not yet created have nothing to report
			log.Debug().Err(err).Str("stream", name).Msg("Skipping stream stats")
			continue
		}
		StreamRecords.With(name).Set(float64(records))
		StreamHandlingEntries.With(name).Set(float64(entries))
		BlockedPartitions.With(name).Set(float64(blocked))
	}
}
