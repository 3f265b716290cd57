package memory

import (
	"context"

	"github.com/maxpert/recordstream/filter"
	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/telemetry"
	"github.com/rs/zerolog/log"
)

// TryHandle claims the first eligible record for req.Concern and returns
// it, or nil when nothing is claimable. Blocked partitions and disabled
// records are skipped. With no locator every partition is tried in locator
// order.
func (s *Stream) TryHandle(ctx context.Context, req model.TryHandleRequest) (*model.Record, error) {
	if err := model.ValidateConcern(req.Concern); err != nil {
		return nil, err
	}
	if err := req.VersionMatchStrategy.Validate(); err != nil {
		return nil, err
	}
	if err := req.Order.Validate(); err != nil {
		return nil, err
	}

	var claimed *model.Record
	err := s.run(ctx, func(ev *events) error {
		parts, err := s.targets(req.Locator)
		if err != nil {
			return err
		}
		for _, p := range parts {
			err := p.withRecordsAndHandling(false, func(r *recordState, h *handlingState) error {
				if h.blocked {
					telemetry.TryHandleBlockedSkips.With(s.name).Inc()
					log.Debug().Str("stream", s.name).Str("locator", p.key()).Msg("Skipping blocked partition")
					return nil
				}

				rec, err := s.nextEligible(r, h, &req)
				if err != nil || rec == nil {
					return err
				}

				tags := req.Tags
				if req.InheritRecordTags {
					tags = append(append([]model.NamedValue(nil), rec.Metadata.Tags...), req.Tags...)
				}
				entries := h.machine.Claim(rec, req.Concern, req.Details, tags)
				ev.handlingRecorded(p.key(), entries...)

				found := rec.Clone()
				claimed = &found
				log.Debug().
					Str("stream", s.name).
					Str("locator", p.key()).
					Str("concern", req.Concern).
					Int64("record_id", rec.InternalRecordID).
					Msg("Record claimed")
				return nil
			})
			if err != nil || claimed != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if claimed != nil {
		telemetry.TryHandleTotal.With(s.name, "claimed").Inc()
	} else {
		telemetry.TryHandleTotal.With(s.name, "empty").Inc()
	}
	return claimed, nil
}

// nextEligible walks the records in request order and returns the first one
// that matches the type filters, is not disabled and whose current status
// the eligibility policy accepts.
func (s *Stream) nextEligible(r *recordState, h *handlingState, req *model.TryHandleRequest) (*model.Record, error) {
	var (
		found *model.Record
		err   error
	)
	r.ledger.Scan(req.Order, floorOf(req.MinInternalRecordID), func(rec *model.Record) bool {
		if h.disabled[rec.InternalRecordID] {
			return true
		}
		if !s.eligibility.Claimable(h.ledger.Status(req.Concern, rec.InternalRecordID)) {
			return true
		}
		var ok bool
		if ok, err = filter.MatchTypes(req.IDType, req.ObjectType, &rec.Metadata, req.VersionMatchStrategy); err != nil {
			return false
		}
		if !ok {
			return true
		}
		found = rec
		return false
	})
	return found, err
}

func (s *Stream) CompleteRunning(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionComplete, req)
}

func (s *Stream) FailRunning(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionFail, req)
}

func (s *Stream) CancelRequested(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionCancelRequested, req)
}

func (s *Stream) CancelRunning(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionCancelRunning, req)
}

func (s *Stream) SelfCancelRunning(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionSelfCancelRunning, req)
}

func (s *Stream) RetryFailed(ctx context.Context, req model.HandlingRequest) error {
	return s.transition(ctx, handling.TransitionRetryFailed, req)
}

func (s *Stream) transition(ctx context.Context, t handling.Transition, req model.HandlingRequest) error {
	if err := model.ValidateConcern(req.Concern); err != nil {
		return err
	}
	return s.run(ctx, func(ev *events) error {
		p, err := s.partitionFor(req.Locator)
		if err != nil {
			return err
		}
		return p.withRecordsAndHandling(false, func(r *recordState, h *handlingState) error {
			rec, err := existingRecord(r, p, req.InternalRecordID)
			if err != nil {
				return err
			}
			entry, err := h.machine.Apply(t, rec, req.Concern, req.Details, req.Tags)
			if err != nil {
				return err
			}
			ev.handlingRecorded(p.key(), entry)
			log.Debug().
				Str("stream", s.name).
				Str("locator", p.key()).
				Str("concern", req.Concern).
				Int64("record_id", rec.InternalRecordID).
				Str("status", entry.Status.String()).
				Msg("Handling transition")
			return nil
		})
	})
}

func existingRecord(r *recordState, p *partition, recordID int64) (*model.Record, error) {
	rec, ok := r.ledger.Get(recordID)
	if !ok {
		return nil, model.NewArgumentError("internalRecordId", "record %d not found on %s", recordID, p.key())
	}
	return rec, nil
}

// GetHandlingStatus returns the current status of a (record, concern) pair;
// None when it has no entries.
func (s *Stream) GetHandlingStatus(ctx context.Context, locator model.Locator, recordID int64, concern string) (model.HandlingStatus, error) {
	if err := model.ValidateConcern(concern); err != nil {
		return model.HandlingStatusNone, err
	}
	status := model.HandlingStatusNone
	err := s.run(ctx, func(*events) error {
		p, err := s.partitionFor(locator)
		if err != nil {
			return err
		}
		return p.withHandling(func(h *handlingState) error {
			status = h.ledger.Status(concern, recordID)
			return nil
		})
	})
	return status, err
}

// GetHandlingHistory returns the entries of a (record, concern) pair in
// append order.
func (s *Stream) GetHandlingHistory(ctx context.Context, locator model.Locator, recordID int64, concern string) ([]model.HandlingEntry, error) {
	if err := model.ValidateConcern(concern); err != nil {
		return nil, err
	}
	var out []model.HandlingEntry
	err := s.run(ctx, func(*events) error {
		p, err := s.partitionFor(locator)
		if err != nil {
			return err
		}
		return p.withHandling(func(h *handlingState) error {
			out = h.ledger.History(concern, recordID)
			return nil
		})
	})
	return out, err
}

// GetCompositeHandlingStatusByIDs reduces the current statuses of every
// record carrying one of req.IDs. None when no record matches.
func (s *Stream) GetCompositeHandlingStatusByIDs(ctx context.Context, req model.CompositeStatusRequest) (model.HandlingStatus, error) {
	if err := model.ValidateConcern(req.Concern); err != nil {
		return model.HandlingStatusNone, err
	}
	if len(req.IDs) == 0 {
		return model.HandlingStatusNone, model.NewArgumentError("ids", "must not be empty")
	}
	if err := req.VersionMatchStrategy.Validate(); err != nil {
		return model.HandlingStatusNone, err
	}

	wanted := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		wanted[id] = true
	}

	return s.composite(ctx, req, func(parts []*partition) ([]*partition, error) {
		if req.Locator != nil {
			return parts, nil
		}
		// route each id to its owning partition
		owned := make(map[string]bool)
		var out []*partition
		for i := range req.IDs {
			l, err := s.locators.LocatorFor(&req.IDs[i])
			if err != nil {
				return nil, err
			}
			if owned[l.Key()] {
				continue
			}
			owned[l.Key()] = true
			p, err := s.partitionFor(l)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}, func(rec *model.Record) (bool, error) {
		if rec.Metadata.StringSerializedID == nil || !wanted[*rec.Metadata.StringSerializedID] {
			return false, nil
		}
		return filter.MatchType(req.IDType, rec.Metadata.TypeOfID, req.VersionMatchStrategy)
	})
}

// GetCompositeHandlingStatusByTags reduces the current statuses of every
// record whose tags match req.Tags. None when no record matches.
func (s *Stream) GetCompositeHandlingStatusByTags(ctx context.Context, req model.CompositeStatusRequest) (model.HandlingStatus, error) {
	if err := model.ValidateConcern(req.Concern); err != nil {
		return model.HandlingStatusNone, err
	}
	if len(req.Tags) == 0 {
		return model.HandlingStatusNone, model.NewArgumentError("tags", "must not be empty")
	}
	return s.composite(ctx, req, nil, func(rec *model.Record) (bool, error) {
		return filter.MatchTags(req.Tags, rec.Metadata.Tags, req.TagMatchStrategy)
	})
}

func (s *Stream) composite(
	ctx context.Context,
	req model.CompositeStatusRequest,
	narrow func(parts []*partition) ([]*partition, error),
	match func(rec *model.Record) (bool, error),
) (model.HandlingStatus, error) {
	var statuses []model.HandlingStatus
	err := s.run(ctx, func(*events) error {
		parts, err := s.targets(req.Locator)
		if err != nil {
			return err
		}
		if narrow != nil {
			if parts, err = narrow(parts); err != nil {
				return err
			}
		}
		for _, p := range parts {
			err := p.withRecordsAndHandling(false, func(r *recordState, h *handlingState) error {
				var err error
				r.ledger.Scan(model.OrderAscending, 0, func(rec *model.Record) bool {
					var ok bool
					if ok, err = match(rec); err != nil {
						return false
					}
					if ok {
						statuses = append(statuses, h.ledger.Status(req.Concern, rec.InternalRecordID))
					}
					return true
				})
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.HandlingStatusNone, err
	}
	if len(statuses) == 0 {
		return model.HandlingStatusNone, nil
	}
	return s.reducer.Reduce(statuses)
}

// Block closes the handling gate of the target partitions (every partition
// when req.Locator is nil). Partitions are processed in locator order and
// the first failure stops the walk; partitions already blocked by this call
// stay blocked.
func (s *Stream) Block(ctx context.Context, req model.BlockRequest) error {
	return s.setGate(ctx, req, true)
}

// CancelBlock reopens the handling gate of the target partitions.
func (s *Stream) CancelBlock(ctx context.Context, req model.BlockRequest) error {
	return s.setGate(ctx, req, false)
}

// DisableHandlingForStream blocks every partition.
func (s *Stream) DisableHandlingForStream(ctx context.Context, req model.BlockRequest) error {
	req.Locator = nil
	return s.setGate(ctx, req, true)
}

// EnableHandlingForStream unblocks every partition.
func (s *Stream) EnableHandlingForStream(ctx context.Context, req model.BlockRequest) error {
	req.Locator = nil
	return s.setGate(ctx, req, false)
}

func (s *Stream) setGate(ctx context.Context, req model.BlockRequest, block bool) error {
	return s.run(ctx, func(ev *events) error {
		parts, err := s.targets(req.Locator)
		if err != nil {
			return err
		}
		for _, p := range parts {
			err := p.withHandling(func(h *handlingState) error {
				entry, err := h.machine.SetGate(block, req.Details, req.Tags)
				if err != nil {
					return err
				}
				h.blocked = block
				ev.handlingRecorded(p.key(), entry)
				return nil
			})
			if err != nil {
				return err
			}

			if block {
				telemetry.BlockedPartitions.With(s.name).Inc()
			} else {
				telemetry.BlockedPartitions.With(s.name).Dec()
			}
			log.Info().
				Str("stream", s.name).
				Str("locator", p.key()).
				Bool("blocked", block).
				Str("details", req.Details).
				Msg("Handling gate changed")
		}
		return nil
	})
}

// IsBlocked reports whether the partition is blocked. With a nil locator
// on a multi-locator stream it reports whether any partition is blocked.
func (s *Stream) IsBlocked(ctx context.Context, locator model.Locator) (bool, error) {
	var blocked bool
	err := s.run(ctx, func(*events) error {
		parts, err := s.targets(locator)
		if err != nil {
			return err
		}
		for _, p := range parts {
			_ = p.withHandling(func(h *handlingState) error {
				blocked = blocked || h.blocked
				return nil
			})
		}
		return nil
	})
	return blocked, err
}

// DisableHandlingForRecord stops TryHandle from claiming the record for any
// concern until EnableHandlingForRecord is called.
func (s *Stream) DisableHandlingForRecord(ctx context.Context, req model.HandlingRequest) error {
	return s.setRecordDisabled(ctx, req, true)
}

func (s *Stream) EnableHandlingForRecord(ctx context.Context, req model.HandlingRequest) error {
	return s.setRecordDisabled(ctx, req, false)
}

func (s *Stream) setRecordDisabled(ctx context.Context, req model.HandlingRequest, disable bool) error {
	return s.run(ctx, func(ev *events) error {
		p, err := s.partitionFor(req.Locator)
		if err != nil {
			return err
		}
		return p.withRecordsAndHandling(false, func(r *recordState, h *handlingState) error {
			rec, err := existingRecord(r, p, req.InternalRecordID)
			if err != nil {
				return err
			}
			entry, err := h.machine.SetRecordDisabled(rec, disable, req.Details, req.Tags)
			if err != nil {
				return err
			}
			if disable {
				h.disabled[rec.InternalRecordID] = true
			} else {
				delete(h.disabled, rec.InternalRecordID)
			}
			ev.handlingRecorded(p.key(), entry)
			return nil
		})
	})
}
