package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"

	"github.com/maxpert/recordstream/model"
)

type OpType int

const (
	OpPut OpType = iota
	OpRead
	OpHandle
	OpStatus

	numOpTypes
)

func (o OpType) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpRead:
		return "READ"
	case OpHandle:
		return "HANDLE"
	case OpStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// KeyGenerator generates sequential record ids.
// Thread-safe: uses atomic operations for the counter, caller provides rng.
type KeyGenerator struct {
	prefix     string
	counter    uint64
	putOverlap float64 // % of puts that target existing ids (0-100)
}

// NewKeyGenerator creates a key generator.
func NewKeyGenerator(prefix string, putOverlap float64) *KeyGenerator {
	return &KeyGenerator{
		prefix:     prefix,
		putOverlap: putOverlap,
	}
}

// NextPutKey generates an id for a put.
// With putOverlap > 0, some puts reuse an existing id and are skipped by
// DoNotWriteIfFoundById.
func (g *KeyGenerator) NextPutKey(rng *rand.Rand) (key string, overlap bool) {
	max := atomic.LoadUint64(&g.counter)
	if g.putOverlap > 0 && max > 0 && rng.Float64()*100 < g.putOverlap {
		n := uint64(rng.Int63n(int64(max))) + 1
		return g.format(n), true
	}
	return g.format(atomic.AddUint64(&g.counter, 1)), false
}

// RandomExistingKey returns a random id that has been handed out.
// The record may not be written yet.
func (g *KeyGenerator) RandomExistingKey(rng *rand.Rand) string {
	max := atomic.LoadUint64(&g.counter)
	if max == 0 {
		return g.format(1)
	}
	return g.format(uint64(rng.Int63n(int64(max))) + 1)
}

// Issued returns how many distinct ids were handed out.
func (g *KeyGenerator) Issued() uint64 {
	return atomic.LoadUint64(&g.counter)
}

func (g *KeyGenerator) format(n uint64) string {
	return fmt.Sprintf("%s_%012d", g.prefix, n)
}

// OpSelector selects operations based on workload distribution.
type OpSelector struct {
	dist       WorkloadDistribution
	thresholds [numOpTypes]int // Cumulative thresholds for each op type
	rng        *rand.Rand
}

// NewOpSelector creates an operation selector.
func NewOpSelector(dist WorkloadDistribution, seed int64) *OpSelector {
	s := &OpSelector{
		dist: dist,
		rng:  rand.New(rand.NewSource(seed)),
	}

	s.thresholds[OpPut] = dist.Put
	s.thresholds[OpRead] = s.thresholds[OpPut] + dist.Read
	s.thresholds[OpHandle] = s.thresholds[OpRead] + dist.Handle
	s.thresholds[OpStatus] = s.thresholds[OpHandle] + dist.Status

	return s
}

// Select returns a random operation type based on distribution.
func (s *OpSelector) Select() OpType {
	r := s.rng.Intn(100)

	if r < s.thresholds[OpPut] {
		return OpPut
	}
	if r < s.thresholds[OpRead] {
		return OpRead
	}
	if r < s.thresholds[OpHandle] {
		return OpHandle
	}
	return OpStatus
}

// newPayload generates a small JSON object payload.
func newPayload(rng *rand.Rand) model.Payload {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 64
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rng.Intn(len(chars))]
	}
	return model.Payload{
		Serializer: model.SerializerRepresentation{Kind: model.SerializationKindJSON},
		Format:     model.SerializationFormatString,
		Text:       `{"value":"` + string(b) + `"}`,
	}
}

// newTags spreads records over a few buckets so tag queries have work.
func newTags(rng *rand.Rand) []model.NamedValue {
	return model.Tags("bucket", strconv.Itoa(rng.Intn(8)))
}

// IsConflictError reports errors caused by racing handlers rather than by
// the benchmark itself.
func IsConflictError(err error) bool {
	return errors.Is(err, model.ErrInvalidStateTransition) || errors.Is(err, model.ErrConflict)
}

// ctxErr reports whether err only means the run was stopped.
func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
