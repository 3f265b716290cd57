package model

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Locator is an opaque shard key.
type Locator interface {
	// Key uniquely identifies the shard within a stream.
	Key() string
}

// MemoryLocator addresses a process-resident partition.
type MemoryLocator struct {
	Name string `json:"name"`
}

func (l MemoryLocator) Key() string { return l.Name }

func (l MemoryLocator) String() string { return "memory:" + l.Name }

// LocatorProtocol enumerates the shards of a stream and maps identities to
// them.
type LocatorProtocol interface {
	AllLocators() []Locator
	LocatorFor(stringSerializedID *string) (Locator, error)
}

// SingleLocatorProtocol routes everything to one locator.
type SingleLocatorProtocol struct {
	Locator Locator
}

// NewSingleLocatorProtocol routes to a memory locator with the given name.
func NewSingleLocatorProtocol(name string) *SingleLocatorProtocol {
	return &SingleLocatorProtocol{Locator: MemoryLocator{Name: name}}
}

func (p *SingleLocatorProtocol) AllLocators() []Locator {
	return []Locator{p.Locator}
}

func (p *SingleLocatorProtocol) LocatorFor(*string) (Locator, error) {
	return p.Locator, nil
}

// HashLocatorProtocol spreads identities over a fixed set of memory
// locators by xxhash. Records without an identity go to the first locator.
type HashLocatorProtocol struct {
	locators []Locator
}

// NewHashLocatorProtocol creates count locators named prefix-0..prefix-(count-1).
func NewHashLocatorProtocol(prefix string, count int) (*HashLocatorProtocol, error) {
	if count < 1 {
		return nil, NewArgumentError("count", "must be at least 1, got %d", count)
	}
	locators := make([]Locator, count)
	for i := range locators {
		locators[i] = MemoryLocator{Name: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return &HashLocatorProtocol{locators: locators}, nil
}

func (p *HashLocatorProtocol) AllLocators() []Locator {
	out := make([]Locator, len(p.locators))
	copy(out, p.locators)
	return out
}

func (p *HashLocatorProtocol) LocatorFor(stringSerializedID *string) (Locator, error) {
	if stringSerializedID == nil {
		return p.locators[0], nil
	}
	idx := xxhash.Sum64String(*stringSerializedID) % uint64(len(p.locators))
	return p.locators[idx], nil
}
