package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/maxpert/recordstream/filter"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

// Put appends one record, applying the existing-record strategy against
// prior records with the same identity in the target partition.
func (s *Stream) Put(ctx context.Context, req model.PutRequest) (model.PutResult, error) {
	start := time.Now()
	defer func() {
		telemetry.PutDurationSeconds.With(s.name).Observe(time.Since(start).Seconds())
	}()

	granularity, action, err := req.ExistingRecordStrategy.Decompose()
	if err != nil {
		return model.PutResult{}, err
	}
	if err := req.VersionMatchStrategy.Validate(); err != nil {
		return model.PutResult{}, err
	}
	if granularity != model.MatchNone && req.Metadata.StringSerializedID == nil {
		return model.PutResult{}, model.NewArgumentError("stringSerializedId",
			"required by existing record strategy %s", req.ExistingRecordStrategy)
	}
	retention := 1
	if req.RecordRetentionCount != nil {
		if *req.RecordRetentionCount < 1 {
			return model.PutResult{}, model.NewArgumentError("recordRetentionCount", "must be at least 1, got %d", *req.RecordRetentionCount)
		}
		retention = *req.RecordRetentionCount
	}

	meta, err := s.normalizeMetadata(req.Metadata)
	if err != nil {
		return model.PutResult{}, err
	}
	payload := req.Payload
	if payload.Binary != nil {
		payload.Binary = append([]byte(nil), payload.Binary...)
	}

	var result model.PutResult
	err = s.run(ctx, func(ev *events) error {
		l := req.Locator
		if l == nil {
			routedTo, err := s.locators.LocatorFor(meta.StringSerializedID)
			if err != nil {
				return err
			}
			l = routedTo
		}
		p, err := s.partitionFor(l)
		if err != nil {
			return err
		}

		if action == model.ActionPrune {
			return p.withRecordsAndHandling(true, func(r *recordState, h *handlingState) error {
				existing, err := r.findExisting(&meta, payload, granularity, req.VersionMatchStrategy)
				if err != nil {
					return err
				}
				rec := r.append(meta, payload)
				ev.recordWritten(p.key(), rec)

				var pruned []int64
				if keepOld := retention - 1; len(existing) > keepOld {
					pruned = existing[:len(existing)-keepOld]
				}
				if len(pruned) > 0 {
					pr := pruneRecords(r, h, pruned)
					ev.pruned(p.key(), pr)
					telemetry.RecordsPrunedTotal.With(s.name, "put").Add(float64(pr.RecordsRemoved))
				}

				newID := rec.InternalRecordID
				result, err = model.NewPutResult(p.key(), &newID, nil, pruned)
				return err
			})
		}

		return p.withRecords(true, func(r *recordState) error {
			existing, err := r.findExisting(&meta, payload, granularity, req.VersionMatchStrategy)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				switch action {
				case model.ActionSkip:
					telemetry.RecordsSkippedTotal.With(s.name, "existing").Inc()
					result, err = model.NewPutResult(p.key(), nil, existing, nil)
					return err
				case model.ActionThrow:
					telemetry.RecordsSkippedTotal.With(s.name, "conflict").Inc()
					return &model.ConflictError{
						Reason:            fmt.Sprintf("existing record found on %s with strategy %s", p.key(), req.ExistingRecordStrategy),
						ExistingRecordIDs: existing,
					}
				}
			}

			rec := r.append(meta, payload)
			ev.recordWritten(p.key(), rec)
			newID := rec.InternalRecordID
			result, err = model.NewPutResult(p.key(), &newID, nil, nil)
			return err
		})
	})
	if err != nil {
		return model.PutResult{}, err
	}

	if result.NewInternalRecordID != nil {
		telemetry.RecordsWrittenTotal.With(s.name).Inc()
		log.Debug().
			Str("stream", s.name).
			Str("locator", result.Locator).
			Int64("record_id", *result.NewInternalRecordID).
			Int("pruned", len(result.PrunedRecordIDs)).
			Msg("Record appended")
	}
	return result, nil
}

// normalizeMetadata fills in the timestamp, derives the unversioned type
// forms and detaches the tags from the caller's slice.
func (s *Stream) normalizeMetadata(meta model.RecordMetadata) (model.RecordMetadata, error) {
	if meta.TimestampUTC.IsZero() {
		meta.TimestampUTC = s.now()
	} else if meta.TimestampUTC.Location() != time.UTC {
		return meta, model.NewArgumentError("timestampUtc", "must be UTC, got %s", meta.TimestampUTC.Location())
	}
	if meta.ObjectTimestampUTC != nil {
		if meta.ObjectTimestampUTC.Location() != time.UTC {
			return meta, model.NewArgumentError("objectTimestampUtc", "must be UTC, got %s", meta.ObjectTimestampUTC.Location())
		}
		ts := *meta.ObjectTimestampUTC
		meta.ObjectTimestampUTC = &ts
	}
	if meta.StringSerializedID != nil {
		id := *meta.StringSerializedID
		meta.StringSerializedID = &id
	}

	meta.TypeOfID = model.NewTypeRepresentationWithAndWithoutVersion(meta.TypeOfID.WithVersion)
	meta.TypeOfObject = model.NewTypeRepresentationWithAndWithoutVersion(meta.TypeOfObject.WithVersion)
	if meta.Tags != nil {
		meta.Tags = append([]model.NamedValue(nil), meta.Tags...)
	}
	return meta, nil
}

// findExisting returns the ids of prior records matching meta at the given
// granularity, ascending. The id filter answers most misses without a scan.
func (r *recordState) findExisting(meta *model.RecordMetadata, payload model.Payload, g model.MatchGranularity, vms model.VersionMatchStrategy) ([]int64, error) {
	if g == model.MatchNone {
		return nil, nil
	}
	id := *meta.StringSerializedID
	if !r.ids.MightContain(id) {
		return nil, nil
	}

	idType := meta.TypeOfID.WithVersion
	objectType := meta.TypeOfObject.WithVersion
	var contentHash uint64
	if g == model.MatchByIDAndTypeAndContent {
		contentHash = xxhash.Sum64(payload.Bytes())
	}

	var (
		matches []int64
		err     error
	)
	r.ledger.Scan(model.OrderAscending, 0, func(rec *model.Record) bool {
		if rec.Metadata.StringSerializedID == nil || *rec.Metadata.StringSerializedID != id {
			return true
		}
		var ok bool
		if ok, err = filter.MatchType(&idType, rec.Metadata.TypeOfID, vms); err != nil {
			return false
		} else if !ok {
			return true
		}
		if g >= model.MatchByIDAndType {
			if ok, err = filter.MatchType(&objectType, rec.Metadata.TypeOfObject, vms); err != nil {
				return false
			} else if !ok {
				return true
			}
		}
		if g == model.MatchByIDAndTypeAndContent {
			if r.contentHashes[rec.InternalRecordID] != contentHash || !rec.Payload.ContentEqual(payload) {
				return true
			}
		}
		matches = append(matches, rec.InternalRecordID)
		return true
	})
	return matches, err
}
