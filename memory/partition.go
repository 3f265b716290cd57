package memory

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/recordstream/filter"
	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/ledger"
	"github.com/maxpert/recordstream/model"
)

// recordState is everything guarded by a partition's records lock.
type recordState struct {
	ledger *ledger.RecordLedger
	ids    *filter.IDFilter

	// record id -> xxhash of payload bytes, for content matching
	contentHashes map[int64]uint64
}

func (r *recordState) append(meta model.RecordMetadata, payload model.Payload) model.Record {
	rec := r.ledger.Append(meta, payload)
	r.contentHashes[rec.InternalRecordID] = xxhash.Sum64(payload.Bytes())
	if meta.StringSerializedID != nil {
		r.ids.Add(*meta.StringSerializedID)
	}
	return rec
}

// retain drops records and keeps the content hashes in step. The id filter
// is rebuilt by the caller once every removal is done.
func (r *recordState) retain(keep func(rec *model.Record) bool) []int64 {
	removed := r.ledger.Retain(keep)
	for _, id := range removed {
		delete(r.contentHashes, id)
	}
	return removed
}

func (r *recordState) rebuildIDFilter() {
	var ids []string
	r.ledger.Scan(model.OrderAscending, 0, func(rec *model.Record) bool {
		if rec.Metadata.StringSerializedID != nil {
			ids = append(ids, *rec.Metadata.StringSerializedID)
		}
		return true
	})
	r.ids.Rebuild(ids)
}

// handlingState is everything guarded by a partition's handling lock.
type handlingState struct {
	ledger  *ledger.HandlingLedger
	machine *handling.StateMachine

	// blocked mirrors the latest gate entry and disabled mirrors the latest
	// record-disable entries. Both are maintained next to every ledger
	// write that changes them and recomputed after prune.
	blocked  bool
	disabled map[int64]bool
}

func (h *handlingState) syncFlags() {
	h.blocked = h.machine.GateBlocked()
	h.disabled = make(map[int64]bool)
	h.ledger.ForEachLatest(model.RecordDisabledConcern, func(recordID int64, status model.HandlingStatus) {
		if status == model.HandlingStatusBlocked {
			h.disabled[recordID] = true
		}
	})
}

// partition is one shard of a stream. Lock order is records before
// handling; every access goes through the with* helpers so the order
// cannot be inverted.
type partition struct {
	locator model.Locator

	recordsMu sync.RWMutex
	records   recordState

	handlingMu sync.Mutex
	handling   handlingState
}

func newPartition(locator model.Locator, idFilterCapacity uint, now func() time.Time) *partition {
	hl := ledger.NewHandlingLedger()
	return &partition{
		locator: locator,
		records: recordState{
			ledger:        ledger.NewRecordLedger(),
			ids:           filter.NewIDFilter(idFilterCapacity),
			contentHashes: make(map[int64]uint64),
		},
		handling: handlingState{
			ledger: hl,
			machine: &handling.StateMachine{
				Locator: locator.Key(),
				Ledger:  hl,
				Now:     now,
			},
			disabled: make(map[int64]bool),
		},
	}
}

func (p *partition) key() string {
	return p.locator.Key()
}

// withRecords runs fn under the records lock, shared unless write is set.
func (p *partition) withRecords(write bool, fn func(r *recordState) error) error {
	if write {
		p.recordsMu.Lock()
		defer p.recordsMu.Unlock()
	} else {
		p.recordsMu.RLock()
		defer p.recordsMu.RUnlock()
	}
	return fn(&p.records)
}

// withHandling runs fn under the handling lock only.
func (p *partition) withHandling(fn func(h *handlingState) error) error {
	p.handlingMu.Lock()
	defer p.handlingMu.Unlock()
	return fn(&p.handling)
}

// withRecordsAndHandling takes the records lock (shared unless write is
// set) and then the handling lock.
func (p *partition) withRecordsAndHandling(write bool, fn func(r *recordState, h *handlingState) error) error {
	return p.withRecords(write, func(r *recordState) error {
		return p.withHandling(func(h *handlingState) error {
			return fn(r, h)
		})
	})
}

func (p *partition) stats() model.PartitionStats {
	var st model.PartitionStats
	_ = p.withRecordsAndHandling(false, func(r *recordState, h *handlingState) error {
		st = model.PartitionStats{
			Locator:              p.key(),
			Records:              r.ledger.Len(),
			HandlingEntries:      h.ledger.Len(),
			LastInternalRecordID: r.ledger.LastID(),
			LastHandlingEntryID:  h.ledger.LastID(),
			Blocked:              h.blocked,
			DisabledRecords:      len(h.disabled),
			Concerns:             h.ledger.Concerns(),
			IDFilterSaturated:    r.ids.Saturated(),
		}
		st.HandledRecords = make(map[string]int, len(st.Concerns))
		for _, c := range st.Concerns {
			st.HandledRecords[c] = h.ledger.LatestCount(c)
		}
		if oldest, ok := r.ledger.Oldest(); ok {
			ts := oldest.Metadata.TimestampUTC
			st.OldestRecordTimestamp = &ts
		}
		return nil
	})
	return st
}
