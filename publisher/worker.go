package publisher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	// Default batch size for reading events per poll cycle
	DefaultBatchSize = 100
	// Default interval between poll cycles when nothing wakes the worker
	DefaultPollInterval = 500 * time.Millisecond
	// Default initial retry delay for failed publish operations
	DefaultRetryInitial = 100 * time.Millisecond
	// Default maximum retry delay (exponential backoff cap)
	DefaultRetryMax = 30 * time.Second
	// Default exponential backoff multiplier
	DefaultRetryMultiplier = 2.0
	// Maximum number of retry attempts before giving up on an event
	DefaultMaxRetries = 100
)

// WorkerConfig configures a feed worker
type WorkerConfig struct {
	Name            string        // Sink name (for cursor tracking)
	Log             *PublishLog   // Publish log to read from
	Sink            Sink          // Destination sink
	Transformer     Transformer   // Event transformer
	Filter          Filter        // Event filter
	TopicPrefix     string        // Topic prefix (e.g., "recordstream")
	BatchSize       int           // Events per poll cycle
	PollInterval    time.Duration // Poll interval
	RetryInitial    time.Duration // Initial retry delay
	RetryMax        time.Duration // Max retry delay
	RetryMultiplier float64       // Backoff multiplier
	MaxRetries      int           // Maximum retry attempts
}

// Worker delivers publish log events to one sink, at least once and in
// sequence order
type Worker struct {
	config      WorkerConfig
	cursor      atomic.Uint64
	wakeCh      chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     atomic.Bool
	lifecycleMu sync.Mutex
}

// NewWorker creates a worker positioned at the sink's persisted cursor
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("worker name is required")
	}
	if config.Log == nil {
		return nil, fmt.Errorf("publish log is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if config.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if config.Filter == nil {
		return nil, fmt.Errorf("filter is required")
	}

	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.RetryInitial <= 0 {
		config.RetryInitial = DefaultRetryInitial
	}
	if config.RetryMax <= 0 {
		config.RetryMax = DefaultRetryMax
	}
	if config.RetryMultiplier <= 0 {
		config.RetryMultiplier = DefaultRetryMultiplier
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	cursor, err := config.Log.GetCursor(config.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	w := &Worker{
		config: config,
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	w.cursor.Store(cursor)
	return w, nil
}

// Name returns the sink name
func (w *Worker) Name() string {
	return w.config.Name
}

// Cursor returns the last delivered sequence
func (w *Worker) Cursor() uint64 {
	return w.cursor.Load()
}

// Wake interrupts the poll sleep so new events are picked up immediately
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Start starts the worker goroutine
func (w *Worker) Start() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.running.Load() {
		return
	}

	w.running.Store(true)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	log.Info().
		Str("worker", w.config.Name).
		Uint64("cursor", w.cursor.Load()).
		Msg("Starting feed worker")

	go w.pollLoop()
}

// Stop stops the worker and waits for the loop to exit
func (w *Worker) Stop() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if !w.running.Load() {
		return
	}

	close(w.stopCh)
	<-w.doneCh
	w.running.Store(false)

	log.Info().Str("worker", w.config.Name).Msg("Feed worker stopped")
}

func (w *Worker) pollLoop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		events, err := w.config.Log.ReadFrom(w.cursor.Load(), w.config.BatchSize)
		if err != nil {
			log.Error().
				Err(err).
				Str("worker", w.config.Name).
				Uint64("cursor", w.cursor.Load()).
				Msg("Failed to read from publish log")
			if !w.wait(w.config.PollInterval) {
				return
			}
			continue
		}

		if len(events) == 0 {
			if !w.wait(w.config.PollInterval) {
				return
			}
			continue
		}

		for _, event := range events {
			if err := w.processEvent(event); err != nil {
				// retries exhausted or stopped; the event is retried on restart
				log.Error().
					Err(err).
					Str("worker", w.config.Name).
					Uint64("seq", event.SeqNum).
					Msg("Failed to deliver feed event")
				return
			}
			w.cursor.Store(event.SeqNum)
		}
	}
}

// processEvent publishes one event and advances the sink cursor. Filtered
// events advance the cursor without publishing. Prune events are followed by
// a tombstone for every removed record.
func (w *Worker) processEvent(event FeedEvent) error {
	if w.config.Filter.Match(event.Stream, event.Concern) {
		data, err := w.config.Transformer.Transform(event)
		if err != nil {
			return fmt.Errorf("failed to transform event %d: %w", event.SeqNum, err)
		}

		topic := w.buildTopic(event.Stream, event.Kind)
		if err := w.publishWithRetry(topic, event.Key(), data); err != nil {
			return err
		}

		if event.Prune != nil {
			recordsTopic := w.buildTopic(event.Stream, KindRecordWritten)
			for _, id := range event.Prune.RemovedRecordIDs {
				key := EventKey(event.Stream, event.Locator, id)
				if err := w.publishWithRetry(recordsTopic, key, w.config.Transformer.Tombstone(key)); err != nil {
					return err
				}
			}
		}
		telemetry.FeedEventsPublishedTotal.With(w.config.Name).Inc()
	}

	// a failed cursor write only causes redelivery after restart
	if err := w.config.Log.AdvanceCursor(w.config.Name, event.SeqNum); err != nil {
		log.Warn().
			Err(err).
			Str("worker", w.config.Name).
			Uint64("seq", event.SeqNum).
			Msg("Failed to advance feed cursor")
	}
	return nil
}

// buildTopic returns {prefix}.{stream}.{kind}
func (w *Worker) buildTopic(stream string, kind uint8) string {
	if w.config.TopicPrefix == "" {
		return fmt.Sprintf("%s.%s", stream, KindName(kind))
	}
	return fmt.Sprintf("%s.%s.%s", w.config.TopicPrefix, stream, KindName(kind))
}

// publishWithRetry publishes with exponential backoff until it succeeds,
// retries run out, or the worker stops
func (w *Worker) publishWithRetry(topic, key string, data []byte) error {
	delay := w.config.RetryInitial
	attempts := 0

	for {
		start := time.Now()
		err := w.config.Sink.Publish(topic, key, data)
		telemetry.FeedPublishSeconds.With(w.config.Name).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}

		attempts++
		telemetry.FeedPublishFailuresTotal.With(w.config.Name).Inc()
		if attempts >= w.config.MaxRetries {
			return fmt.Errorf("exhausted max retries (%d) for topic %s: %w", w.config.MaxRetries, topic, err)
		}

		log.Warn().
			Err(err).
			Str("worker", w.config.Name).
			Str("topic", topic).
			Int("attempt", attempts).
			Dur("retry_delay", delay).
			Msg("Failed to publish feed event, retrying")

		if !w.sleep(delay) {
			return fmt.Errorf("worker stopped during retry")
		}

		delay = time.Duration(float64(delay) * w.config.RetryMultiplier)
		if delay > w.config.RetryMax {
			delay = w.config.RetryMax
		}
	}
}

// wait sleeps for d or until woken. Returns false if stopped.
func (w *Worker) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.stopCh:
		return false
	case <-w.wakeCh:
		return true
	case <-timer.C:
		return true
	}
}

// sleep sleeps for d ignoring wake-ups. Returns false if stopped.
func (w *Worker) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.stopCh:
		return false
	case <-timer.C:
		return true
	}
}
