package memory

import (
	"context"
	"time"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

// PruneBeforeDate removes records stamped before req.Before together with
// their handling entries, plus any other handling entry stamped before it.
// The latest gate entry always survives so a blocked partition stays
// blocked.
func (s *Stream) PruneBeforeDate(ctx context.Context, req model.PruneRequest) (model.PruneResult, error) {
	if req.Before.IsZero() {
		return model.PruneResult{}, model.NewArgumentError("before", "must be set")
	}
	if req.Before.Location() != time.UTC {
		return model.PruneResult{}, model.NewArgumentError("before", "must be UTC, got %s", req.Before.Location())
	}
	threshold := req.Before

	return s.prune(ctx, req.Locator, "date",
		func(rec *model.Record) bool {
			return !rec.Metadata.TimestampUTC.Before(threshold)
		},
		func(e *model.HandlingEntry) bool {
			return !e.TimestampUTC.Before(threshold)
		})
}

// PruneBeforeID removes records with an id below req.BeforeID together
// with their handling entries. Gate entries are never removed.
func (s *Stream) PruneBeforeID(ctx context.Context, req model.PruneRequest) (model.PruneResult, error) {
	threshold := req.BeforeID
	return s.prune(ctx, req.Locator, "id",
		func(rec *model.Record) bool {
			return rec.InternalRecordID >= threshold
		},
		func(*model.HandlingEntry) bool {
			return true
		})
}

// prune applies keepRecord to the records of every target partition, then
// drops the handling entries of removed records and any entry rejected by
// keepEntry. The newest gate entry is kept regardless.
func (s *Stream) prune(ctx context.Context, l model.Locator, trigger string, keepRecord func(*model.Record) bool, keepEntry func(*model.HandlingEntry) bool) (model.PruneResult, error) {
	var total model.PruneResult
	err := s.run(ctx, func(ev *events) error {
		parts, err := s.targets(l)
		if err != nil {
			return err
		}
		for _, p := range parts {
			err := p.withRecordsAndHandling(true, func(r *recordState, h *handlingState) error {
				removed := r.retain(keepRecord)
				removedSet := make(map[int64]bool, len(removed))
				for _, id := range removed {
					removedSet[id] = true
				}

				gate, hasGate := h.ledger.Latest(model.BlockingConcern, model.BlockingRecordID)
				entriesRemoved := h.ledger.Retain(func(e *model.HandlingEntry) bool {
					if hasGate && e.InternalHandlingEntryID == gate.InternalHandlingEntryID {
						return true
					}
					if removedSet[e.InternalRecordID] {
						return false
					}
					return keepEntry(e)
				})

				if len(removed) > 0 {
					r.rebuildIDFilter()
				}
				if entriesRemoved > 0 {
					h.syncFlags()
				}

				pr := model.PruneResult{
					RecordsRemoved:         len(removed),
					HandlingEntriesRemoved: entriesRemoved,
					RemovedRecordIDs:       removed,
				}
				ev.pruned(p.key(), pr)
				total.Add(pr)

				if pr.RecordsRemoved > 0 || pr.HandlingEntriesRemoved > 0 {
					log.Info().
						Str("stream", s.name).
						Str("locator", p.key()).
						Str("trigger", trigger).
						Int("records", pr.RecordsRemoved).
						Int("handling_entries", pr.HandlingEntriesRemoved).
						Msg("Pruned partition")
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.PruneResult{}, err
	}

	telemetry.RecordsPrunedTotal.With(s.name, trigger).Add(float64(total.RecordsRemoved))
	return total, nil
}

// pruneRecords removes the given records and their handling entries. Used
// by Put's prune strategies, where the surviving new record carries the
// same id so the id filter stays valid.
func pruneRecords(r *recordState, h *handlingState, ids []int64) model.PruneResult {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	removed := r.retain(func(rec *model.Record) bool {
		return !set[rec.InternalRecordID]
	})
	entriesRemoved := h.ledger.Retain(func(e *model.HandlingEntry) bool {
		return !set[e.InternalRecordID]
	})
	for _, id := range removed {
		delete(h.disabled, id)
	}
	return model.PruneResult{
		RecordsRemoved:         len(removed),
		HandlingEntriesRemoved: entriesRemoved,
		RemovedRecordIDs:       removed,
	}
}
