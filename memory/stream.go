// Package memory is the process-resident realization of a record stream.
// Every partition keeps an ordered record ledger and a handling ledger
// behind its own pair of locks; partitions never share state.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maxpert/recordstream/filter"
	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/id"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/notify"
	"github.com/maxpert/recordstream/stream"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
)

// Options configures a Stream. LocatorProtocol and Reducer are required.
type Options struct {
	LocatorProtocol  model.LocatorProtocol
	Reducer          handling.Reducer
	IDFilterCapacity uint

	// Eligibility decides which statuses TryHandle may claim. Nil means
	// handling.DefaultEligibility().
	Eligibility *handling.EligibilityPolicy

	// Clock fills in missing record timestamps and stamps handling
	// entries. Defaults to time.Now.
	Clock func() time.Time

	// Observer is called after every change with no partition lock held.
	Observer stream.Observer

	// Hub receives change signals. A private hub is created when nil.
	Hub *notify.Hub
}

// Stream is an in-memory stream.ReadWriteStream. It does not exist until
// CreateStream is called.
type Stream struct {
	name        string
	locators    model.LocatorProtocol
	reducer     handling.Reducer
	eligibility handling.EligibilityPolicy
	capacity    uint
	clock       func() time.Time
	observer    stream.Observer
	hub         *notify.Hub

	// lifecycleMu is held shared by every operation and exclusively by
	// CreateStream and DeleteStream.
	lifecycleMu sync.RWMutex
	exists      bool
	partitions  *xsync.MapOf[string, *partition]
	uniqueIDs   *id.Sequence

	singleMu sync.Mutex
	single   *partition
}

var _ stream.ReadWriteStream = (*Stream)(nil)
var _ stream.Subscriber = (*Stream)(nil)

// New creates a stream handle. The stream itself must still be created.
func New(name string, opts Options) (*Stream, error) {
	if name == "" {
		return nil, model.NewArgumentError("name", "must not be empty")
	}
	if opts.LocatorProtocol == nil {
		return nil, model.NewArgumentError("locatorProtocol", "must not be nil")
	}
	if opts.Reducer == nil {
		return nil, model.NewArgumentError("reducer", "must not be nil")
	}
	if len(opts.LocatorProtocol.AllLocators()) == 0 {
		return nil, model.NewArgumentError("locatorProtocol", "has no locators")
	}
	for _, l := range opts.LocatorProtocol.AllLocators() {
		if _, err := memoryKey(l); err != nil {
			return nil, err
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	hub := opts.Hub
	if hub == nil {
		hub = notify.NewHub()
	}
	capacity := opts.IDFilterCapacity
	if capacity == 0 {
		capacity = filter.DefaultIDFilterCapacity
	}
	eligibility := handling.DefaultEligibility()
	if opts.Eligibility != nil {
		eligibility = *opts.Eligibility
	}

	return &Stream{
		name:        name,
		locators:    opts.LocatorProtocol,
		reducer:     opts.Reducer,
		eligibility: eligibility,
		capacity:    capacity,
		clock:       clock,
		observer:    opts.Observer,
		hub:         hub,
		partitions:  xsync.NewMapOf[string, *partition](),
		uniqueIDs:   id.NewSequence(0),
	}, nil
}

func (s *Stream) Name() string { return s.name }

// Subscribe returns change signals for this stream matching f.
func (s *Stream) Subscribe(f notify.Filter) (<-chan notify.Signal, func()) {
	f.Streams = []string{s.name}
	return s.hub.Subscribe(f)
}

func (s *Stream) now() time.Time {
	return s.clock().UTC()
}

func (s *Stream) CreateStream(ctx context.Context, req model.CreateStreamRequest) (model.CreateStreamResult, error) {
	if err := ctx.Err(); err != nil {
		return model.CreateStreamResult{}, err
	}

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	existed := s.exists
	switch req.OnExisting {
	case model.ExistingStreamSkip:
		if existed {
			return model.NewCreateStreamResult(true, false)
		}
	case model.ExistingStreamOverwrite:
	case model.ExistingStreamThrow:
		if existed {
			return model.CreateStreamResult{}, &model.ConflictError{Reason: fmt.Sprintf("stream %s already exists", s.name)}
		}
	default:
		return model.CreateStreamResult{}, model.NewArgumentError("onExisting", "unsupported strategy %v", req.OnExisting)
	}

	s.createPartitions()
	log.Info().
		Str("stream", s.name).
		Int("locators", s.partitions.Size()).
		Bool("overwritten", existed).
		Msg("Stream created")
	return model.NewCreateStreamResult(existed, true)
}

// caller holds lifecycleMu exclusively
func (s *Stream) createPartitions() {
	s.partitions.Clear()
	for _, l := range s.locators.AllLocators() {
		s.partitions.Store(l.Key(), newPartition(l, s.capacity, s.clock))
	}
	s.uniqueIDs = id.NewSequence(0)
	s.exists = true

	s.singleMu.Lock()
	s.single = nil
	s.singleMu.Unlock()

	telemetry.BlockedPartitions.With(s.name).Set(0)
}

func (s *Stream) DeleteStream(ctx context.Context, req model.DeleteStreamRequest) (model.DeleteStreamResult, error) {
	if err := ctx.Err(); err != nil {
		return model.DeleteStreamResult{}, err
	}

	switch req.OnMissing {
	case model.MissingStreamSkip, model.MissingStreamThrow:
	default:
		return model.DeleteStreamResult{}, model.NewArgumentError("onMissing", "unsupported strategy %v", req.OnMissing)
	}

	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.exists {
		if req.OnMissing == model.MissingStreamThrow {
			return model.DeleteStreamResult{}, s.notFound()
		}
		return model.DeleteStreamResult{Existed: false}, nil
	}

	s.partitions.Clear()
	s.exists = false
	s.singleMu.Lock()
	s.single = nil
	s.singleMu.Unlock()

	telemetry.BlockedPartitions.With(s.name).Set(0)
	log.Info().Str("stream", s.name).Msg("Stream deleted")
	return model.DeleteStreamResult{Existed: true}, nil
}

func (s *Stream) notFound() error {
	return &model.ArgumentError{
		Param:  "stream",
		Reason: fmt.Sprintf("stream %s does not exist", s.name),
		Err:    model.ErrStreamNotFound,
	}
}

// run executes fn while the stream is guaranteed to exist, then delivers
// the changes fn collected once every lock is released.
func (s *Stream) run(ctx context.Context, fn func(ev *events) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var ev events
	err := func() error {
		s.lifecycleMu.RLock()
		defer s.lifecycleMu.RUnlock()
		if !s.exists {
			return s.notFound()
		}
		return fn(&ev)
	}()

	s.emit(ev)
	return err
}

func (s *Stream) GetNextUniqueLong(ctx context.Context) (int64, error) {
	var next int64
	err := s.run(ctx, func(*events) error {
		next = s.uniqueIDs.NextID()
		return nil
	})
	return next, err
}

// Stats summarizes every partition in locator order.
func (s *Stream) Stats(ctx context.Context) ([]model.PartitionStats, error) {
	var out []model.PartitionStats
	err := s.run(ctx, func(*events) error {
		for _, p := range s.allPartitions() {
			out = append(out, p.stats())
		}
		return nil
	})
	return out, err
}

// Totals implements telemetry.StatsProvider.
func (s *Stream) Totals() (records, handlingEntries, blockedPartitions int, err error) {
	stats, err := s.Stats(context.Background())
	if err != nil {
		return 0, 0, 0, err
	}
	for _, st := range stats {
		records += st.Records
		handlingEntries += st.HandlingEntries
		if st.Blocked {
			blockedPartitions++
		}
	}
	return records, handlingEntries, blockedPartitions, nil
}

func memoryKey(l model.Locator) (string, error) {
	switch loc := l.(type) {
	case model.MemoryLocator:
		return loc.Name, nil
	case *model.MemoryLocator:
		if loc == nil {
			return "", model.NewArgumentError("locator", "must not be nil")
		}
		return loc.Name, nil
	default:
		return "", &model.NotSupportedError{What: "locator", Value: fmt.Sprintf("%T", l)}
	}
}

// allPartitions returns the partitions in locator order.
// caller holds lifecycleMu
func (s *Stream) allPartitions() []*partition {
	locs := s.locators.AllLocators()
	out := make([]*partition, 0, len(locs))
	for _, l := range locs {
		if p, ok := s.partitions.Load(l.Key()); ok {
			out = append(out, p)
		}
	}
	return out
}

// partitionFor resolves an explicit locator, or the only locator when l is
// nil.
// caller holds lifecycleMu
func (s *Stream) partitionFor(l model.Locator) (*partition, error) {
	if l == nil {
		return s.singlePartition()
	}
	key, err := memoryKey(l)
	if err != nil {
		return nil, err
	}
	p, ok := s.partitions.Load(key)
	if !ok {
		return nil, model.NewArgumentError("locator", "unknown locator %s for stream %s", key, s.name)
	}
	return p, nil
}

// caller holds lifecycleMu
func (s *Stream) singlePartition() (*partition, error) {
	s.singleMu.Lock()
	defer s.singleMu.Unlock()

	if s.single != nil {
		return s.single, nil
	}
	all := s.locators.AllLocators()
	if len(all) != 1 {
		return nil, model.NewArgumentError("locator", "required when stream %s has %d locators", s.name, len(all))
	}
	p, ok := s.partitions.Load(all[0].Key())
	if !ok {
		return nil, model.NewArgumentError("locator", "unknown locator %s for stream %s", all[0].Key(), s.name)
	}
	s.single = p
	return p, nil
}

// targets resolves l, or every partition when l is nil.
// caller holds lifecycleMu
func (s *Stream) targets(l model.Locator) ([]*partition, error) {
	if l == nil {
		return s.allPartitions(), nil
	}
	p, err := s.partitionFor(l)
	if err != nil {
		return nil, err
	}
	return []*partition{p}, nil
}

// routed resolves l, or the partition owning id when l is nil and id is
// set, or every partition otherwise.
// caller holds lifecycleMu
func (s *Stream) routed(l model.Locator, stringSerializedID *string) ([]*partition, error) {
	if l == nil && stringSerializedID != nil {
		routedTo, err := s.locators.LocatorFor(stringSerializedID)
		if err != nil {
			return nil, err
		}
		l = routedTo
	}
	return s.targets(l)
}
