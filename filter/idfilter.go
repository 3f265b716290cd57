package filter

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
	cuckoo "github.com/linvon/cuckoo-filter"
	"github.com/maxpert/recordstream/telemetry"
)

const (
	cuckooBucketSize      = 4
	cuckooFingerprintSize = 32

	// DefaultIDFilterCapacity is the max number of distinct ids per partition
	// before the filter saturates.
	DefaultIDFilterCapacity = 1 << 20
)

var hashBufPool = sync.Pool{
	New: func() any { return make([]byte, 8) },
}

// IDFilter answers "has this string serialized id ever been written to the
// partition" with no false negatives.
//
//   - Filter MISS = no prior record carries the id, Put skips the scan
//   - Filter HIT = maybe, Put scans the record ledger
//
// Ids are inserted once and never deleted; prune rebuilds the filter from
// the surviving records. When an insert fails the filter is saturated and
// every check reports a hit until the next rebuild.
type IDFilter struct {
	mu        sync.RWMutex
	filter    *cuckoo.Filter
	capacity  uint
	saturated bool
}

// NewIDFilter creates a filter sized for capacity distinct ids.
func NewIDFilter(capacity uint) *IDFilter {
	if capacity == 0 {
		capacity = DefaultIDFilterCapacity
	}
	return &IDFilter{
		filter:   newCuckoo(capacity),
		capacity: capacity,
	}
}

func newCuckoo(capacity uint) *cuckoo.Filter {
	return cuckoo.NewFilter(cuckooBucketSize, cuckooFingerprintSize, capacity, cuckoo.TableTypePacked)
}

// MightContain returns false only if id was never added.
func (f *IDFilter) MightContain(id string) bool {
	f.mu.RLock()
	result := f.saturated || f.containHash(HashID(id))
	f.mu.RUnlock()

	if result {
		telemetry.IDFilterChecks.With("slow").Inc()
	} else {
		telemetry.IDFilterChecks.With("fast").Inc()
	}
	return result
}

// Add records id. Adding an id already present is a no-op so repeated
// writes of one identity do not fill buckets with duplicates.
func (f *IDFilter) Add(id string) {
	f.mu.Lock()
	f.addHash(HashID(id))
	size := f.filter.Size()
	f.mu.Unlock()

	telemetry.IDFilterSize.Set(float64(size))
}

// Rebuild replaces the contents with ids and clears saturation.
func (f *IDFilter) Rebuild(ids []string) {
	f.mu.Lock()
	f.filter = newCuckoo(f.capacity)
	f.saturated = false
	for _, id := range ids {
		f.addHash(HashID(id))
	}
	size := f.filter.Size()
	f.mu.Unlock()

	telemetry.IDFilterSize.Set(float64(size))
}

// Saturated reports whether an insert has failed since the last rebuild.
func (f *IDFilter) Saturated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.saturated
}

// Size returns the number of fingerprints stored.
func (f *IDFilter) Size() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.Size()
}

// caller holds mu
func (f *IDFilter) containHash(h uint64) bool {
	buf := hashBufPool.Get().([]byte)
	binary.LittleEndian.PutUint64(buf, h)
	result := f.filter.Contain(buf)
	hashBufPool.Put(buf)
	return result
}

// caller holds mu for writing
func (f *IDFilter) addHash(h uint64) {
	if f.saturated {
		return
	}
	buf := hashBufPool.Get().([]byte)
	binary.LittleEndian.PutUint64(buf, h)
	if !f.filter.Contain(buf) && !f.filter.Add(buf) {
		f.saturated = true
	}
	hashBufPool.Put(buf)
}

// HashID hashes a string serialized id for the filter.
func HashID(id string) uint64 {
	return xxhash.Sum64String(id)
}
