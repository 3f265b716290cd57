package memory

import (
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/notify"
	"github.com/maxpert/recordstream/telemetry"
)

type event struct {
	locator string
	kind    notify.Kind
	record  model.Record
	entry   model.HandlingEntry
	pruned  model.PruneResult
}

// events collects the changes of one operation while locks are held so
// they can be delivered after the locks are released.
type events []event

func (e *events) recordWritten(locator string, rec model.Record) {
	*e = append(*e, event{locator: locator, kind: notify.KindRecordAppended, record: rec})
}

func (e *events) handlingRecorded(locator string, entries ...model.HandlingEntry) {
	for _, entry := range entries {
		*e = append(*e, event{locator: locator, kind: notify.KindHandlingRecorded, entry: entry})
	}
}

func (e *events) pruned(locator string, result model.PruneResult) {
	if result.RecordsRemoved == 0 && result.HandlingEntriesRemoved == 0 {
		return
	}
	*e = append(*e, event{locator: locator, kind: notify.KindPruned, pruned: result})
}

func (s *Stream) emit(ev events) {
	for _, e := range ev {
		switch e.kind {
		case notify.KindRecordAppended:
			if s.observer != nil {
				s.observer.RecordWritten(s.name, e.locator, e.record)
			}
			s.hub.Signal(notify.Signal{Stream: s.name, Locator: e.locator, Kind: e.kind, ID: e.record.InternalRecordID})

		case notify.KindHandlingRecorded:
			telemetry.HandlingTransitionsTotal.With(s.name, e.entry.Status.String()).Inc()
			if s.observer != nil {
				s.observer.HandlingRecorded(s.name, e.locator, e.entry)
			}
			s.hub.Signal(notify.Signal{
				Stream:  s.name,
				Locator: e.locator,
				Kind:    e.kind,
				ID:      e.entry.InternalHandlingEntryID,
				Concern: e.entry.Concern,
			})

		case notify.KindPruned:
			if s.observer != nil {
				s.observer.Pruned(s.name, e.locator, e.pruned)
			}
			s.hub.Signal(notify.Signal{Stream: s.name, Locator: e.locator, Kind: e.kind})
		}
	}
}
