package publisher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/maxpert/recordstream/encoding"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

// Key prefixes for Pebble storage
const (
	prefixFeedEvent  = "/feed/"   // /feed/{16-digit-hex-seq}
	prefixFeedCursor = "/cursor/" // /cursor/{sinkName}
	keyFeedSeq       = "/seq"     // last assigned sequence
)

// Pebble tuning for a small sequential outbox
const (
	memTableSize                = 16 << 20 // 16MB
	memTableStopWritesThreshold = 4
	l0CompactionThreshold       = 2
	l0StopWritesThreshold       = 12
	maxConcurrentCompactions    = 2
)

const (
	defaultReadLimit    = 100
	cleanupIntervalMask = 0x7F // cursor cleanup every 128 sequences
)

var errLogClosed = errors.New("publish log is closed")

// PublishLog is a Pebble-backed outbox of feed events with one consumption
// cursor per sink
type PublishLog struct {
	db   *pebble.DB
	path string

	cursors   map[string]uint64
	cursorsMu sync.RWMutex

	// appendMu serializes sequence assignment with the batch commit
	appendMu sync.Mutex
	lastSeq  atomic.Uint64

	cleanupMu      sync.Mutex
	cleanupRunning atomic.Bool
	cleanupWg      sync.WaitGroup

	closed atomic.Bool
}

// NewPublishLog creates or opens the publish log under dataDir
func NewPublishLog(dataDir string) (*PublishLog, error) {
	logPath := filepath.Join(dataDir, "feed")

	opts := &pebble.Options{
		MemTableSize:                memTableSize,
		MemTableStopWritesThreshold: memTableStopWritesThreshold,
		L0CompactionThreshold:       l0CompactionThreshold,
		L0StopWritesThreshold:       l0StopWritesThreshold,
		MaxConcurrentCompactions:    func() int { return maxConcurrentCompactions },
	}

	db, err := pebble.Open(logPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open publish log at %s: %w", logPath, err)
	}

	pl := &PublishLog{
		db:      db,
		path:    logPath,
		cursors: make(map[string]uint64),
	}

	if err := pl.loadLastSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load sequence number: %w", err)
	}
	if err := pl.loadCursors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load cursors: %w", err)
	}

	return pl, nil
}

func (pl *PublishLog) loadLastSeq() error {
	val, closer, err := pl.db.Get([]byte(keyFeedSeq))
	if errors.Is(err, pebble.ErrNotFound) {
		pl.lastSeq.Store(0)
		return nil
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(val) != 8 {
		return fmt.Errorf("invalid sequence value length: %d", len(val))
	}
	pl.lastSeq.Store(binary.LittleEndian.Uint64(val))
	return nil
}

func (pl *PublishLog) loadCursors() error {
	prefix := []byte(prefixFeedCursor)
	iter, err := pl.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		sink := string(iter.Key()[len(prefixFeedCursor):])
		val, err := iter.ValueAndErr()
		if err != nil {
			return err
		}
		if len(val) != 8 {
			return fmt.Errorf("corrupted cursor for sink %s: invalid length %d", sink, len(val))
		}
		pl.cursors[sink] = binary.LittleEndian.Uint64(val)
	}
	if err := iter.Error(); err != nil {
		return err
	}

	if len(pl.cursors) > 0 {
		log.Info().Int("cursors", len(pl.cursors)).Msg("Loaded feed cursors")
	}
	return nil
}

// Append assigns sequence numbers to events and persists them in one
// batch. SeqNum is set on the caller's slice.
func (pl *PublishLog) Append(events []FeedEvent) error {
	if len(events) == 0 {
		return nil
	}
	if pl.closed.Load() {
		return errLogClosed
	}

	pl.appendMu.Lock()
	defer pl.appendMu.Unlock()

	seq := pl.lastSeq.Load()
	batch := pl.db.NewBatch()
	defer batch.Close()

	for i := range events {
		seq++
		events[i].SeqNum = seq

		val, err := encoding.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if err := batch.Set([]byte(formatEventKey(seq)), val, nil); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	if err := batch.Set([]byte(keyFeedSeq), encodeUint64(seq), nil); err != nil {
		return fmt.Errorf("failed to update sequence: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	pl.lastSeq.Store(seq)
	telemetry.FeedEventsAppendedTotal.Add(float64(len(events)))
	return nil
}

// LastSeq returns the last assigned sequence number
func (pl *PublishLog) LastSeq() uint64 {
	return pl.lastSeq.Load()
}

// ReadFrom reads events after cursor, up to limit events
func (pl *PublishLog) ReadFrom(cursor uint64, limit int) ([]FeedEvent, error) {
	if pl.closed.Load() {
		return nil, errLogClosed
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}

	startKey := []byte(formatEventKey(cursor + 1))
	iter, err := pl.db.NewIter(&pebble.IterOptions{
		LowerBound: startKey,
		UpperBound: prefixUpperBound([]byte(prefixFeedEvent)),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	events := make([]FeedEvent, 0, limit)
	for iter.SeekGE(startKey); iter.Valid() && len(events) < limit; iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}

		var event FeedEvent
		if err := encoding.Unmarshal(val, &event); err != nil {
			log.Warn().Err(err).Str("key", string(iter.Key())).Msg("Skipping undecodable feed event")
			continue
		}
		events = append(events, event)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetCursor returns the last sequence delivered to a sink, 0 for new sinks
func (pl *PublishLog) GetCursor(sinkName string) (uint64, error) {
	if pl.closed.Load() {
		return 0, errLogClosed
	}

	pl.cursorsMu.RLock()
	defer pl.cursorsMu.RUnlock()
	return pl.cursors[sinkName], nil
}

// AdvanceCursor persists a sink's cursor and periodically drops events every
// sink has consumed
func (pl *PublishLog) AdvanceCursor(sinkName string, newSeq uint64) error {
	if pl.closed.Load() {
		return errLogClosed
	}

	pl.cursorsMu.Lock()
	pl.cursors[sinkName] = newSeq
	pl.cursorsMu.Unlock()

	if err := pl.db.Set([]byte(prefixFeedCursor+sinkName), encodeUint64(newSeq), pebble.Sync); err != nil {
		return fmt.Errorf("failed to update cursor: %w", err)
	}

	if newSeq&cleanupIntervalMask == 0 && pl.cleanupRunning.CompareAndSwap(false, true) {
		pl.cleanupWg.Add(1)
		go pl.cleanupAsync()
	}
	return nil
}

// cleanup deletes events every known sink has consumed
func (pl *PublishLog) cleanup() {
	pl.cleanupMu.Lock()
	defer pl.cleanupMu.Unlock()

	if pl.closed.Load() {
		return
	}

	pl.cursorsMu.RLock()
	if len(pl.cursors) == 0 {
		pl.cursorsMu.RUnlock()
		return
	}
	minCursor := ^uint64(0)
	for _, c := range pl.cursors {
		minCursor = min(minCursor, c)
	}
	pl.cursorsMu.RUnlock()

	if minCursor == 0 {
		return
	}

	// every sink has delivered minCursor itself
	end := []byte(formatEventKey(minCursor + 1))
	if err := pl.db.DeleteRange([]byte(prefixFeedEvent), end, pebble.Sync); err != nil {
		log.Warn().Err(err).Uint64("min_cursor", minCursor).Msg("Failed to clean up publish log")
		return
	}
	log.Debug().Uint64("min_cursor", minCursor).Msg("Cleaned up publish log")
}

func (pl *PublishLog) cleanupAsync() {
	defer pl.cleanupWg.Done()
	defer pl.cleanupRunning.Store(false)
	pl.cleanup()
}

// DropBefore removes events stamped before cutoff regardless of cursors and
// returns how many were dropped. Sinks lagging behind lose those events.
func (pl *PublishLog) DropBefore(cutoff time.Time) (int, error) {
	if pl.closed.Load() {
		return 0, errLogClosed
	}

	pl.cleanupMu.Lock()
	defer pl.cleanupMu.Unlock()

	prefix := []byte(prefixFeedEvent)
	iter, err := pl.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}

	cutoffMS := cutoff.UnixMilli()
	dropped := 0
	var end []byte
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			iter.Close()
			return 0, err
		}
		var event FeedEvent
		if err := encoding.Unmarshal(val, &event); err == nil && event.TimeMS >= cutoffMS {
			break
		}
		end = append(end[:0], iter.Key()...)
		dropped++
	}
	iterErr := iter.Error()
	iter.Close()
	if iterErr != nil {
		return 0, iterErr
	}
	if dropped == 0 {
		return 0, nil
	}

	// end is the last key to drop; DeleteRange excludes its upper bound
	end = append(end, 0)
	if err := pl.db.DeleteRange(prefix, end, pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to drop expired events: %w", err)
	}
	return dropped, nil
}

// Close waits for in-flight cleanup and closes the database
func (pl *PublishLog) Close() error {
	if !pl.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("publish log already closed")
	}
	pl.cleanupWg.Wait()
	if pl.db != nil {
		return pl.db.Close()
	}
	return nil
}

func formatEventKey(seq uint64) string {
	return fmt.Sprintf("%s%016x", prefixFeedEvent, seq)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// prefixUpperBound returns the exclusive upper bound for a prefix scan
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end
		}
	}
	return nil
}
