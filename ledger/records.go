package ledger

import (
	"sort"

	"github.com/maxpert/recordstream/id"
	"github.com/maxpert/recordstream/model"
)

// RecordLedger is the ordered, append-only record log of one partition.
// Records are kept in ascending InternalRecordID order. Not thread-safe;
// the owning partition serializes access.
type RecordLedger struct {
	records []model.Record
	ids     *id.Sequence
}

// NewRecordLedger creates an empty ledger whose first record gets id 1.
func NewRecordLedger() *RecordLedger {
	return &RecordLedger{ids: id.NewSequence(0)}
}

// Append assigns the next id and stores the record. The id is allocated
// here and nowhere else so ids stay gap-free. The returned record shares
// no memory with the ledger.
func (l *RecordLedger) Append(meta model.RecordMetadata, payload model.Payload) model.Record {
	rec := model.Record{
		InternalRecordID: l.ids.NextID(),
		Metadata:         meta,
		Payload:          payload,
	}
	l.records = append(l.records, rec.Clone())
	return rec.Clone()
}

// Get returns the record with the given id.
func (l *RecordLedger) Get(recordID int64) (*model.Record, bool) {
	i := l.search(recordID)
	if i < len(l.records) && l.records[i].InternalRecordID == recordID {
		return &l.records[i], true
	}
	return nil, false
}

func (l *RecordLedger) search(recordID int64) int {
	return sort.Search(len(l.records), func(i int) bool {
		return l.records[i].InternalRecordID >= recordID
	})
}

// Scan visits records in the given order until fn returns false. Visiting
// starts at the first record with id >= floor (ascending) or walks down to
// it (descending).
func (l *RecordLedger) Scan(order model.Order, floor int64, fn func(rec *model.Record) bool) {
	start := l.search(floor)
	if order == model.OrderDescending {
		for i := len(l.records) - 1; i >= start; i-- {
			if !fn(&l.records[i]) {
				return
			}
		}
		return
	}
	for i := start; i < len(l.records); i++ {
		if !fn(&l.records[i]) {
			return
		}
	}
}

// Len returns the number of live records.
func (l *RecordLedger) Len() int { return len(l.records) }

// LastID returns the last id ever assigned, including pruned records.
func (l *RecordLedger) LastID() int64 { return l.ids.Last() }

// Oldest returns the first live record.
func (l *RecordLedger) Oldest() (*model.Record, bool) {
	if len(l.records) == 0 {
		return nil, false
	}
	return &l.records[0], true
}

// Retain drops every record for which keep returns false and returns the
// removed ids in ascending order.
func (l *RecordLedger) Retain(keep func(rec *model.Record) bool) []int64 {
	var removed []int64
	kept := l.records[:0]
	for i := range l.records {
		if keep(&l.records[i]) {
			kept = append(kept, l.records[i])
		} else {
			removed = append(removed, l.records[i].InternalRecordID)
		}
	}
	// Clear the tail so dropped payloads can be collected
	for i := len(kept); i < len(l.records); i++ {
		l.records[i] = model.Record{}
	}
	l.records = kept
	return removed
}

// Reset drops every record and restarts ids at 1.
func (l *RecordLedger) Reset() {
	l.records = nil
	l.ids = id.NewSequence(0)
}
