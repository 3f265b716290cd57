package publisher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpert/recordstream/cfg"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog/log"
)

// RegistryConfig configures the feed registry
type RegistryConfig struct {
	DataDir         string                  // Parent of the publish log
	InstanceID      uint64                  // Stamped on every event
	Retention       time.Duration           // Events older than this are dropped (0 = keep)
	CleanupInterval time.Duration           // How often retention runs
	SinkConfigs     []cfg.SinkConfiguration // From config
	Clock           func() time.Time
}

// Registry turns stream changes into feed events and owns the workers that
// deliver them. It implements stream.Observer.
type Registry struct {
	log        *PublishLog
	workers    []*Worker
	instanceID uint64
	retention  time.Duration
	interval   time.Duration
	clock      func() time.Time
	running    atomic.Bool
	mu         sync.Mutex
	stopCh     chan struct{}
	doneCh     chan struct{}
}

var _ stream.Observer = (*Registry)(nil)

// NewRegistry opens the publish log and creates one worker per sink
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	pubLog, err := NewPublishLog(config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create publish log: %w", err)
	}

	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	registry := &Registry{
		log:        pubLog,
		workers:    make([]*Worker, 0, len(config.SinkConfigs)),
		instanceID: config.InstanceID,
		retention:  config.Retention,
		interval:   interval,
		clock:      clock,
	}

	for _, sinkCfg := range config.SinkConfigs {
		if err := registry.AddSink(sinkCfg); err != nil {
			registry.closeSinks()
			pubLog.Close()
			return nil, fmt.Errorf("failed to add sink %q: %w", sinkCfg.Name, err)
		}
	}

	log.Info().
		Int("workers", len(registry.workers)).
		Msg("Feed registry initialized")

	return registry, nil
}

// AddSink creates a worker for the given sink configuration
func (r *Registry) AddSink(config cfg.SinkConfiguration) error {
	snk, err := createSink(config)
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}
	return r.addWorker(config, snk)
}

func (r *Registry) addWorker(config cfg.SinkConfiguration, snk Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	trans, err := createTransformer(config.Format)
	if err != nil {
		snk.Close()
		return fmt.Errorf("failed to create transformer: %w", err)
	}

	filter, err := NewGlobFilter(config.FilterStreams, config.FilterConcerns)
	if err != nil {
		snk.Close()
		return fmt.Errorf("failed to create filter: %w", err)
	}

	worker, err := NewWorker(WorkerConfig{
		Name:            config.Name,
		Log:             r.log,
		Sink:            snk,
		Transformer:     trans,
		Filter:          filter,
		TopicPrefix:     config.TopicPrefix,
		BatchSize:       config.BatchSize,
		PollInterval:    time.Duration(config.PollIntervalMS) * time.Millisecond,
		RetryInitial:    time.Duration(config.RetryInitialMS) * time.Millisecond,
		RetryMax:        time.Duration(config.RetryMaxMS) * time.Millisecond,
		RetryMultiplier: config.RetryMultiplier,
	})
	if err != nil {
		snk.Close()
		return fmt.Errorf("failed to create worker: %w", err)
	}

	r.workers = append(r.workers, worker)
	if r.running.Load() {
		worker.Start()
	}

	log.Info().
		Str("sink", config.Name).
		Str("type", config.Type).
		Str("format", config.Format).
		Msg("Added feed sink")

	return nil
}

// Workers returns the workers in the order their sinks were added
func (r *Registry) Workers() []*Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Worker(nil), r.workers...)
}

// Log returns the underlying publish log
func (r *Registry) Log() *PublishLog {
	return r.log
}

// Start starts all workers and the retention loop
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return fmt.Errorf("registry already running")
	}

	log.Info().Int("workers", len(r.workers)).Msg("Starting feed registry")
	for _, worker := range r.workers {
		worker.Start()
	}

	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.retentionLoop(r.stopCh, r.doneCh)

	r.running.Store(true)
	return nil
}

// Stop stops all workers, closes their sinks and the publish log
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Swap(false) {
		return
	}

	close(r.stopCh)
	<-r.doneCh

	for _, worker := range r.workers {
		worker.Stop()
	}
	r.closeSinks()

	if err := r.log.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close publish log")
	}
	log.Info().Msg("Feed registry stopped")
}

func (r *Registry) closeSinks() {
	for _, worker := range r.workers {
		if err := worker.config.Sink.Close(); err != nil {
			log.Warn().Err(err).Str("sink", worker.config.Name).Msg("Failed to close sink")
		}
	}
}

func (r *Registry) retentionLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	if r.retention <= 0 {
		<-stopCh
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			r.ApplyRetention()
		}
	}
}

// ApplyRetention drops events older than the configured retention
func (r *Registry) ApplyRetention() {
	if r.retention <= 0 {
		return
	}
	dropped, err := r.log.DropBefore(r.clock().Add(-r.retention))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to apply feed retention")
		return
	}
	if dropped > 0 {
		log.Info().Int("dropped", dropped).Dur("retention", r.retention).Msg("Dropped expired feed events")
	}
}

// Append adds events to the publish log and wakes the workers
func (r *Registry) Append(events []FeedEvent) error {
	if !r.running.Load() {
		return fmt.Errorf("registry not running")
	}
	if err := r.log.Append(events); err != nil {
		return err
	}
	for _, worker := range r.Workers() {
		worker.Wake()
	}
	return nil
}

func (r *Registry) observe(event FeedEvent) {
	if err := r.Append([]FeedEvent{event}); err != nil {
		log.Error().
			Err(err).
			Str("stream", event.Stream).
			Str("kind", KindName(event.Kind)).
			Msg("Failed to append feed event")
	}
}

// RecordWritten implements stream.Observer
func (r *Registry) RecordWritten(streamName, locator string, rec model.Record) {
	r.observe(RecordEvent(r.instanceID, streamName, locator, rec))
}

// HandlingRecorded implements stream.Observer
func (r *Registry) HandlingRecorded(streamName, locator string, entry model.HandlingEntry) {
	r.observe(HandlingEvent(r.instanceID, streamName, locator, entry))
}

// Pruned implements stream.Observer
func (r *Registry) Pruned(streamName, locator string, result model.PruneResult) {
	r.observe(PruneEvent(r.instanceID, streamName, locator, result, r.clock()))
}

// createSink creates a sink based on the configuration
func createSink(config cfg.SinkConfiguration) (Sink, error) {
	factoryMu.RLock()
	factory, exists := sinkFactories[config.Type]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown sink type: %s", config.Type)
	}
	return factory(config)
}

// SinkFactory is a function that creates a Sink from a configuration
type SinkFactory func(cfg.SinkConfiguration) (Sink, error)

// TransformerFactory is a function that creates a Transformer
type TransformerFactory func() Transformer

var (
	sinkFactories        = make(map[string]SinkFactory)
	transformerFactories = make(map[string]TransformerFactory)
	factoryMu            sync.RWMutex
)

// RegisterSink registers a sink factory for a type
func RegisterSink(sinkType string, factory SinkFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	sinkFactories[sinkType] = factory
}

// RegisterTransformer registers a transformer factory for a format
func RegisterTransformer(format string, factory TransformerFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	transformerFactories[format] = factory
}

func createTransformer(format string) (Transformer, error) {
	factoryMu.RLock()
	factory, exists := transformerFactories[format]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown format: %s", format)
	}
	return factory(), nil
}
