package memory

import (
	"context"
	"sort"

	"github.com/maxpert/recordstream/filter"
	"github.com/maxpert/recordstream/model"
)

func validateQuery(q *model.RecordQuery) error {
	if err := q.VersionMatchStrategy.Validate(); err != nil {
		return err
	}
	if q.Limit < 0 {
		return model.NewArgumentError("limit", "must not be negative")
	}
	return q.Order.Validate()
}

// matchRecord applies every set filter of q to rec.
func matchRecord(q *model.RecordQuery, rec *model.Record) (bool, error) {
	if q.InternalRecordID != nil && rec.InternalRecordID != *q.InternalRecordID {
		return false, nil
	}
	if q.StringSerializedID != nil {
		if rec.Metadata.StringSerializedID == nil || *rec.Metadata.StringSerializedID != *q.StringSerializedID {
			return false, nil
		}
	}
	if ok, err := filter.MatchTypes(q.IDType, q.ObjectType, &rec.Metadata, q.VersionMatchStrategy); err != nil || !ok {
		return false, err
	}
	if len(q.Tags) > 0 {
		return filter.MatchTags(q.Tags, rec.Metadata.Tags, q.TagMatchStrategy)
	}
	return true, nil
}

func floorOf(minID *int64) int64 {
	if minID == nil {
		return 0
	}
	return *minID
}

// scanMatching visits the records of r matching q in q.Order until fn
// returns false.
func scanMatching(r *recordState, q *model.RecordQuery, fn func(rec *model.Record) bool) error {
	var err error
	r.ledger.Scan(q.Order, floorOf(q.MinInternalRecordID), func(rec *model.Record) bool {
		var ok bool
		if ok, err = matchRecord(q, rec); err != nil {
			return false
		}
		if !ok {
			return true
		}
		return fn(rec)
	})
	return err
}

// GetLatestRecord returns the matching record with the highest id, or the
// newest by timestamp when several partitions are searched. Nil when
// nothing matches.
func (s *Stream) GetLatestRecord(ctx context.Context, q model.RecordQuery) (*model.Record, error) {
	if err := validateQuery(&q); err != nil {
		return nil, err
	}
	q.Order = model.OrderDescending

	var latest *model.Record
	err := s.run(ctx, func(*events) error {
		parts, err := s.routed(q.Locator, q.StringSerializedID)
		if err != nil {
			return err
		}
		for _, p := range parts {
			err := p.withRecords(false, func(r *recordState) error {
				return scanMatching(r, &q, func(rec *model.Record) bool {
					if latest == nil || rec.Metadata.TimestampUTC.After(latest.Metadata.TimestampUTC) {
						found := rec.Clone()
						latest = &found
					}
					return false
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// GetAllRecords returns every matching record, at most q.Limit when set.
// A single partition is returned in id order; results from several
// partitions are merged by timestamp. Each partition stops scanning once
// it has contributed q.Limit records.
func (s *Stream) GetAllRecords(ctx context.Context, q model.RecordQuery) ([]model.Record, error) {
	if err := validateQuery(&q); err != nil {
		return nil, err
	}

	var out []model.Record
	var merged bool
	err := s.run(ctx, func(*events) error {
		parts, err := s.routed(q.Locator, q.StringSerializedID)
		if err != nil {
			return err
		}
		merged = len(parts) > 1
		for _, p := range parts {
			taken := 0
			err := p.withRecords(false, func(r *recordState) error {
				return scanMatching(r, &q, func(rec *model.Record) bool {
					out = append(out, rec.Clone())
					taken++
					return q.Limit == 0 || taken < q.Limit
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if merged {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Order == model.OrderDescending {
				return out[i].Metadata.TimestampUTC.After(out[j].Metadata.TimestampUTC)
			}
			return out[i].Metadata.TimestampUTC.Before(out[j].Metadata.TimestampUTC)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// GetRecordByInternalID returns nil when the record does not exist or was
// pruned.
func (s *Stream) GetRecordByInternalID(ctx context.Context, locator model.Locator, recordID int64) (*model.Record, error) {
	var out *model.Record
	err := s.run(ctx, func(*events) error {
		p, err := s.partitionFor(locator)
		if err != nil {
			return err
		}
		return p.withRecords(false, func(r *recordState) error {
			if rec, ok := r.ledger.Get(recordID); ok {
				found := rec.Clone()
				out = &found
			}
			return nil
		})
	})
	return out, err
}

// GetDistinctStringSerializedIDs lists each (id, id type) pair of the
// matching records once, in order of first appearance. Records without an
// id are ignored.
func (s *Stream) GetDistinctStringSerializedIDs(ctx context.Context, q model.RecordQuery) ([]model.StringSerializedIdentifier, error) {
	if err := validateQuery(&q); err != nil {
		return nil, err
	}

	var out []model.StringSerializedIdentifier
	seen := make(map[model.StringSerializedIdentifier]bool)
	err := s.run(ctx, func(*events) error {
		parts, err := s.routed(q.Locator, q.StringSerializedID)
		if err != nil {
			return err
		}
		for _, p := range parts {
			err := p.withRecords(false, func(r *recordState) error {
				return scanMatching(r, &q, func(rec *model.Record) bool {
					if rec.Metadata.StringSerializedID == nil {
						return true
					}
					ident := model.StringSerializedIdentifier{
						ID:     *rec.Metadata.StringSerializedID,
						IDType: rec.Metadata.TypeOfID,
					}
					if !seen[ident] {
						seen[ident] = true
						out = append(out, ident)
					}
					return true
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
