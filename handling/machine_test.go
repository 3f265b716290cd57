package handling

import (
	"errors"
	"testing"
	"time"

	"github.com/maxpert/recordstream/ledger"
	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine() (*StateMachine, *model.Record) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id := "order-1"
	rec := &model.Record{
		InternalRecordID: 1,
		Metadata:         model.RecordMetadata{StringSerializedID: &id},
	}
	return &StateMachine{
		Locator: "p0",
		Ledger:  ledger.NewHandlingLedger(),
		Now:     func() time.Time { return fixed },
	}, rec
}

func TestClaim_NewPairAppendsRequestedThenRunning(t *testing.T) {
	m, rec := newMachine()

	entries := m.Claim(rec, "c1", "", nil)
	require.Len(t, entries, 2)
	assert.Equal(t, model.HandlingStatusRequested, entries[0].Status)
	assert.Equal(t, model.HandlingStatusRunning, entries[1].Status)
	assert.Equal(t, int64(1), entries[0].InternalHandlingEntryID)
	assert.Equal(t, int64(2), entries[1].InternalHandlingEntryID)
	assert.Equal(t, "order-1", *entries[1].StringSerializedID, "identity copied from record")

	entries = m.Claim(rec, "c1", "", nil)
	require.Len(t, entries, 1, "a pair with entries only gets Running")
	assert.Equal(t, model.HandlingStatusRunning, entries[0].Status)
}

func TestApply_Table(t *testing.T) {
	tests := []struct {
		name    string
		setup   []Transition
		apply   Transition
		want    model.HandlingStatus
		wantErr bool
	}{
		{"complete running", nil, TransitionComplete, model.HandlingStatusCompleted, false},
		{"fail running", nil, TransitionFail, model.HandlingStatusFailed, false},
		{"cancel running", nil, TransitionCancelRunning, model.HandlingStatusCanceledRunning, false},
		{"self cancel running", nil, TransitionSelfCancelRunning, model.HandlingStatusSelfCanceledRunning, false},
		{"retry failed", []Transition{TransitionFail}, TransitionRetryFailed, model.HandlingStatusRetryFailed, false},
		{"retry completed", []Transition{TransitionComplete}, TransitionRetryFailed, model.HandlingStatusCompleted, true},
		{"complete completed", []Transition{TransitionComplete}, TransitionComplete, model.HandlingStatusCompleted, true},
		{"cancel requested on running", nil, TransitionCancelRequested, model.HandlingStatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, rec := newMachine()
			m.Claim(rec, "c1", "", nil)
			for _, s := range tt.setup {
				_, err := m.Apply(s, rec, "c1", "", nil)
				require.NoError(t, err)
			}
			before := m.Ledger.Len()

			_, err := m.Apply(tt.apply, rec, "c1", "details", nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))
				var ist *model.InvalidStateTransitionError
				require.True(t, errors.As(err, &ist))
				assert.Equal(t, "p0", ist.Locator)
				assert.Equal(t, before, m.Ledger.Len(), "failed transition must not append")
			} else {
				require.NoError(t, err)
				assert.Equal(t, before+1, m.Ledger.Len(), "transition appends exactly one entry")
			}
			assert.Equal(t, tt.want, m.Ledger.Status("c1", rec.InternalRecordID))
		})
	}
}

func TestApply_RetryOnRequested(t *testing.T) {
	m, rec := newMachine()
	m.Ledger.Append(model.HandlingEntry{InternalRecordID: 1, Concern: "c1", Status: model.HandlingStatusRequested})

	_, err := m.Apply(TransitionRetryFailed, rec, "c1", "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))

	_, err = m.Apply(TransitionCancelRequested, rec, "c1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusCanceled, m.Ledger.Status("c1", 1))
}

func TestApply_UnknownTransition(t *testing.T) {
	m, rec := newMachine()
	_, err := m.Apply(Transition("pause"), rec, "c1", "", nil)
	assert.True(t, errors.Is(err, model.ErrNotSupported))
}

func TestSetGate(t *testing.T) {
	m, _ := newMachine()

	_, err := m.SetGate(false, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition), "unblocking an open gate")

	e, err := m.SetGate(true, "maintenance", nil)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusBlocked, e.Status)
	assert.True(t, e.IsGateEntry())
	assert.True(t, m.GateBlocked())

	_, err = m.SetGate(true, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition), "double block")

	e, err = m.SetGate(false, "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusRequested, e.Status, "unblock is recorded as Requested")
	assert.False(t, m.GateBlocked())
	assert.Len(t, m.Ledger.History(model.BlockingConcern, model.BlockingRecordID), 2)
}

func TestSetRecordDisabled(t *testing.T) {
	m, rec := newMachine()

	_, err := m.SetRecordDisabled(rec, false, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))

	_, err = m.SetRecordDisabled(rec, true, "", nil)
	require.NoError(t, err)
	assert.True(t, m.RecordDisabled(1))

	_, err = m.SetRecordDisabled(rec, true, "", nil)
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))

	_, err = m.SetRecordDisabled(rec, false, "", nil)
	require.NoError(t, err)
	assert.False(t, m.RecordDisabled(1))
	assert.Equal(t, model.HandlingStatusNone, m.Ledger.Status("c1", 1), "other concerns untouched")
}

func TestIsTerminal(t *testing.T) {
	for _, s := range model.AllHandlingStatuses {
		want := s == model.HandlingStatusCompleted || s == model.HandlingStatusCanceled ||
			s == model.HandlingStatusCanceledRunning || s == model.HandlingStatusSelfCanceledRunning
		if IsTerminal(s) != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, IsTerminal(s), want)
		}
	}
}

func TestEntriesDetachedFromCallerAndReaders(t *testing.T) {
	m, rec := newMachine()

	tags := model.Tags("region", "eu")
	m.Claim(rec, "c1", "", tags)
	tags[0].Value = "us"
	*rec.Metadata.StringSerializedID = "order-2"

	history := m.Ledger.History("c1", rec.InternalRecordID)
	require.Len(t, history, 2)
	history[1].Tags[0].Value = "apac"
	*history[1].StringSerializedID = "order-3"

	latest, ok := m.Ledger.Latest("c1", rec.InternalRecordID)
	require.True(t, ok)
	latest.Tags[0].Value = "latam"

	gateTags := model.Tags("reason", "deploy")
	_, err := m.SetGate(true, "", gateTags)
	require.NoError(t, err)
	gateTags[0].Value = "rollback"

	tests := []struct {
		name  string
		entry model.HandlingEntry
		tag   string
	}{
		{"requested", m.Ledger.History("c1", rec.InternalRecordID)[0], "eu"},
		{"running", m.Ledger.History("c1", rec.InternalRecordID)[1], "eu"},
		{"gate", m.Ledger.History(model.BlockingConcern, model.BlockingRecordID)[0], "deploy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, tt.entry.Tags, 1)
			if tt.entry.Tags[0].Value != tt.tag {
				t.Errorf("stored tag = %q, want %q", tt.entry.Tags[0].Value, tt.tag)
			}
		})
	}

	stored := m.Ledger.History("c1", rec.InternalRecordID)[1]
	assert.Equal(t, "order-1", *stored.StringSerializedID)
}
