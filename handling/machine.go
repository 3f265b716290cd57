package handling

import (
	"time"

	"github.com/maxpert/recordstream/ledger"
	"github.com/maxpert/recordstream/model"
)

// Transition names a caller-initiated status change.
type Transition string

const (
	TransitionComplete          Transition = "complete"
	TransitionFail              Transition = "fail"
	TransitionCancelRequested   Transition = "cancel requested"
	TransitionCancelRunning     Transition = "cancel running"
	TransitionSelfCancelRunning Transition = "self cancel running"
	TransitionRetryFailed       Transition = "retry failed"
)

type rule struct {
	from []model.HandlingStatus
	to   model.HandlingStatus
}

var rules = map[Transition]rule{
	TransitionComplete:          {from: []model.HandlingStatus{model.HandlingStatusRunning}, to: model.HandlingStatusCompleted},
	TransitionFail:              {from: []model.HandlingStatus{model.HandlingStatusRunning}, to: model.HandlingStatusFailed},
	TransitionCancelRequested:   {from: []model.HandlingStatus{model.HandlingStatusRequested}, to: model.HandlingStatusCanceled},
	TransitionCancelRunning:     {from: []model.HandlingStatus{model.HandlingStatusRunning}, to: model.HandlingStatusCanceledRunning},
	TransitionSelfCancelRunning: {from: []model.HandlingStatus{model.HandlingStatusRunning}, to: model.HandlingStatusSelfCanceledRunning},
	TransitionRetryFailed:       {from: []model.HandlingStatus{model.HandlingStatusFailed}, to: model.HandlingStatusRetryFailed},
}

// Target returns the status t moves to and the statuses it may start from.
func Target(t Transition) (to model.HandlingStatus, from []model.HandlingStatus, err error) {
	r, ok := rules[t]
	if !ok {
		return model.HandlingStatusNone, nil, &model.NotSupportedError{What: "transition", Value: t}
	}
	return r.to, r.from, nil
}

// IsTerminal reports whether no transition leaves s. TryHandle eligibility
// is a separate question answered by EligibilityPolicy.
func IsTerminal(s model.HandlingStatus) bool {
	switch s {
	case model.HandlingStatusCompleted, model.HandlingStatusCanceled,
		model.HandlingStatusCanceledRunning, model.HandlingStatusSelfCanceledRunning:
		return true
	}
	return false
}

// StateMachine validates transitions and appends their entries to one
// partition's handling ledger. The caller holds the partition's handling
// lock for the duration of every call.
type StateMachine struct {
	Locator string
	Ledger  *ledger.HandlingLedger
	Now     func() time.Time
}

func (m *StateMachine) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *StateMachine) entryFor(rec *model.Record, concern string, status model.HandlingStatus, details string, tags []model.NamedValue) model.HandlingEntry {
	return model.HandlingEntry{
		InternalRecordID:   rec.InternalRecordID,
		Concern:            concern,
		Status:             status,
		StringSerializedID: rec.Metadata.StringSerializedID,
		TypeOfID:           rec.Metadata.TypeOfID,
		TypeOfObject:       rec.Metadata.TypeOfObject,
		Tags:               model.CloneTags(tags),
		Details:            details,
		TimestampUTC:       m.now(),
	}
}

// Apply validates t against the pair's current status and appends exactly
// one entry.
func (m *StateMachine) Apply(t Transition, rec *model.Record, concern, details string, tags []model.NamedValue) (model.HandlingEntry, error) {
	to, from, err := Target(t)
	if err != nil {
		return model.HandlingEntry{}, err
	}

	current := m.Ledger.Status(concern, rec.InternalRecordID)
	if !contains(from, current) {
		return model.HandlingEntry{}, &model.InvalidStateTransitionError{
			Locator:          m.Locator,
			InternalRecordID: rec.InternalRecordID,
			Concern:          concern,
			Transition:       string(t),
			Current:          current,
			Expected:         from,
		}
	}

	return m.Ledger.Append(m.entryFor(rec, concern, to, details, tags)), nil
}

// Claim appends Requested when the pair has no entries, then Running.
// Eligibility is decided by the caller.
func (m *StateMachine) Claim(rec *model.Record, concern, details string, tags []model.NamedValue) []model.HandlingEntry {
	var out []model.HandlingEntry
	if m.Ledger.Status(concern, rec.InternalRecordID) == model.HandlingStatusNone {
		out = append(out, m.Ledger.Append(m.entryFor(rec, concern, model.HandlingStatusRequested, details, tags)))
	}
	out = append(out, m.Ledger.Append(m.entryFor(rec, concern, model.HandlingStatusRunning, details, tags)))
	return out
}

// GateBlocked reports whether the latest gate entry is Blocked.
func (m *StateMachine) GateBlocked() bool {
	return m.Ledger.Status(model.BlockingConcern, model.BlockingRecordID) == model.HandlingStatusBlocked
}

// SetGate appends a Blocked (block) or Requested (unblock) gate entry.
// Blocking a blocked partition or unblocking an open one is an invalid
// transition.
func (m *StateMachine) SetGate(block bool, details string, tags []model.NamedValue) (model.HandlingEntry, error) {
	blocked := m.GateBlocked()
	if block == blocked {
		t, expected := "block", []model.HandlingStatus{model.HandlingStatusNone, model.HandlingStatusRequested}
		if !block {
			t, expected = "cancel block", []model.HandlingStatus{model.HandlingStatusBlocked}
		}
		return model.HandlingEntry{}, &model.InvalidStateTransitionError{
			Locator:          m.Locator,
			InternalRecordID: model.BlockingRecordID,
			Concern:          model.BlockingConcern,
			Transition:       t,
			Current:          m.Ledger.Status(model.BlockingConcern, model.BlockingRecordID),
			Expected:         expected,
		}
	}

	status := model.HandlingStatusRequested
	if block {
		status = model.HandlingStatusBlocked
	}
	return m.Ledger.Append(model.HandlingEntry{
		InternalRecordID: model.BlockingRecordID,
		Concern:          model.BlockingConcern,
		Status:           status,
		Tags:             model.CloneTags(tags),
		Details:          details,
		TimestampUTC:     m.now(),
	}), nil
}

// RecordDisabled reports whether handling is disabled for the record.
func (m *StateMachine) RecordDisabled(recordID int64) bool {
	return m.Ledger.Status(model.RecordDisabledConcern, recordID) == model.HandlingStatusBlocked
}

// SetRecordDisabled appends a Blocked (disable) or Requested (enable)
// entry on the record-disable concern.
func (m *StateMachine) SetRecordDisabled(rec *model.Record, disable bool, details string, tags []model.NamedValue) (model.HandlingEntry, error) {
	disabled := m.RecordDisabled(rec.InternalRecordID)
	if disable == disabled {
		t, expected := "disable handling", []model.HandlingStatus{model.HandlingStatusNone, model.HandlingStatusRequested}
		if !disable {
			t, expected = "enable handling", []model.HandlingStatus{model.HandlingStatusBlocked}
		}
		return model.HandlingEntry{}, &model.InvalidStateTransitionError{
			Locator:          m.Locator,
			InternalRecordID: rec.InternalRecordID,
			Concern:          model.RecordDisabledConcern,
			Transition:       t,
			Current:          m.Ledger.Status(model.RecordDisabledConcern, rec.InternalRecordID),
			Expected:         expected,
		}
	}

	status := model.HandlingStatusRequested
	if disable {
		status = model.HandlingStatusBlocked
	}
	return m.Ledger.Append(m.entryFor(rec, model.RecordDisabledConcern, status, details, tags)), nil
}

func contains(statuses []model.HandlingStatus, s model.HandlingStatus) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}
