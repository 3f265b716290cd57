package ledger

import (
	"sort"

	"github.com/maxpert/recordstream/id"
	"github.com/maxpert/recordstream/model"
)

// HandlingLedger is the append-only handling log of one partition. All
// concerns share one entry id sequence. Not thread-safe.
type HandlingLedger struct {
	entries []model.HandlingEntry

	// concern -> record id -> index of the newest entry
	latest map[string]map[int64]int
	ids    *id.Sequence
}

func NewHandlingLedger() *HandlingLedger {
	return &HandlingLedger{
		latest: make(map[string]map[int64]int),
		ids:    id.NewSequence(0),
	}
}

// Append assigns the next entry id and stores a private copy of the entry.
// The returned entry shares no memory with the ledger.
func (l *HandlingLedger) Append(e model.HandlingEntry) model.HandlingEntry {
	e = e.Clone()
	e.InternalHandlingEntryID = l.ids.NextID()
	l.entries = append(l.entries, e)

	byRecord := l.latest[e.Concern]
	if byRecord == nil {
		byRecord = make(map[int64]int)
		l.latest[e.Concern] = byRecord
	}
	byRecord[e.InternalRecordID] = len(l.entries) - 1
	return e.Clone()
}

// Latest returns the newest entry of a (record, concern) pair.
func (l *HandlingLedger) Latest(concern string, recordID int64) (model.HandlingEntry, bool) {
	idx, ok := l.latest[concern][recordID]
	if !ok {
		return model.HandlingEntry{}, false
	}
	return l.entries[idx].Clone(), true
}

// Status returns the current status of a pair, or HandlingStatusNone.
func (l *HandlingLedger) Status(concern string, recordID int64) model.HandlingStatus {
	if idx, ok := l.latest[concern][recordID]; ok {
		return l.entries[idx].Status
	}
	return model.HandlingStatusNone
}

// ForEachLatest visits the current status of every record that has entries
// for concern. Order is unspecified.
func (l *HandlingLedger) ForEachLatest(concern string, fn func(recordID int64, status model.HandlingStatus)) {
	for recordID, idx := range l.latest[concern] {
		fn(recordID, l.entries[idx].Status)
	}
}

// LatestCount returns how many records have entries for concern.
func (l *HandlingLedger) LatestCount(concern string) int {
	return len(l.latest[concern])
}

// History returns the entries of a pair in append order.
func (l *HandlingLedger) History(concern string, recordID int64) []model.HandlingEntry {
	if _, ok := l.latest[concern][recordID]; !ok {
		return nil
	}
	var out []model.HandlingEntry
	for _, e := range l.entries {
		if e.Concern == concern && e.InternalRecordID == recordID {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Len returns the number of live entries.
func (l *HandlingLedger) Len() int { return len(l.entries) }

// LastID returns the last entry id ever assigned.
func (l *HandlingLedger) LastID() int64 { return l.ids.Last() }

// Concerns lists the concerns with live entries, sorted, excluding
// reserved ones.
func (l *HandlingLedger) Concerns() []string {
	out := make([]string, 0, len(l.latest))
	for c := range l.latest {
		if !model.IsReservedConcern(c) {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Retain drops every entry for which keep returns false, rebuilds the
// latest index and returns the number removed.
func (l *HandlingLedger) Retain(keep func(e *model.HandlingEntry) bool) int {
	kept := l.entries[:0]
	for i := range l.entries {
		if keep(&l.entries[i]) {
			kept = append(kept, l.entries[i])
		}
	}
	removed := len(l.entries) - len(kept)
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = model.HandlingEntry{}
	}
	l.entries = kept

	if removed > 0 {
		l.reindex()
	}
	return removed
}

func (l *HandlingLedger) reindex() {
	l.latest = make(map[string]map[int64]int)
	for i, e := range l.entries {
		byRecord := l.latest[e.Concern]
		if byRecord == nil {
			byRecord = make(map[int64]int)
			l.latest[e.Concern] = byRecord
		}
		byRecord[e.InternalRecordID] = i
	}
}

// Reset drops every entry and restarts ids at 1.
func (l *HandlingLedger) Reset() {
	l.entries = nil
	l.latest = make(map[string]map[int64]int)
	l.ids = id.NewSequence(0)
}
