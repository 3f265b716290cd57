package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const concern = "billing"

func claim(t *testing.T, s *Stream) *model.Record {
	t.Helper()
	rec, err := s.TryHandle(context.Background(), model.TryHandleRequest{Concern: concern})
	require.NoError(t, err)
	return rec
}

func statusOf(t *testing.T, s *Stream, recordID int64) model.HandlingStatus {
	t.Helper()
	st, err := s.GetHandlingStatus(context.Background(), nil, recordID, concern)
	require.NoError(t, err)
	return st
}

func req(recordID int64) model.HandlingRequest {
	return model.HandlingRequest{InternalRecordID: recordID, Concern: concern}
}

func TestTryHandleBasicClaim(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	id := putRecord(t, s, "a")

	before, err := s.Stats(ctx)
	require.NoError(t, err)

	rec := claim(t, s)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.InternalRecordID)
	assert.Equal(t, model.HandlingStatusRunning, statusOf(t, s, id))

	after, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[0].HandlingEntries+2, after[0].HandlingEntries)

	history, err := s.GetHandlingHistory(ctx, nil, id, concern)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.HandlingStatusRequested, history[0].Status)
	assert.Equal(t, model.HandlingStatusRunning, history[1].Status)
	assert.Equal(t, "a", *history[1].StringSerializedID)
	assert.Less(t, history[0].InternalHandlingEntryID, history[1].InternalHandlingEntryID)

	// Other concerns see the record untouched
	other, err := s.TryHandle(ctx, model.TryHandleRequest{Concern: "shipping"})
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.Equal(t, id, other.InternalRecordID)
}

func TestTryHandleReclaimRunning(t *testing.T) {
	tests := []struct {
		name    string
		reclaim bool
	}{
		{"reclaim", true},
		{"no reclaim", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStream(t, func(o *Options) { o.Eligibility.ReclaimRunning = tt.reclaim })
			id := putRecord(t, s, "a")
			require.NotNil(t, claim(t, s))

			again := claim(t, s)
			if !tt.reclaim {
				assert.Nil(t, again)
				return
			}
			require.NotNil(t, again)
			assert.Equal(t, id, again.InternalRecordID)

			history, err := s.GetHandlingHistory(context.Background(), nil, id, concern)
			require.NoError(t, err)
			require.Len(t, history, 3, "a reclaim appends only Running")
			assert.Equal(t, model.HandlingStatusRunning, history[2].Status)
		})
	}
}

func TestTryHandleExcludesTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	first := putRecord(t, s, "a")
	second := putRecord(t, s, "b")

	rec := claim(t, s)
	require.Equal(t, first, rec.InternalRecordID)
	require.NoError(t, s.CompleteRunning(ctx, req(first)))

	rec = claim(t, s)
	require.NotNil(t, rec)
	assert.Equal(t, second, rec.InternalRecordID)
	require.NoError(t, s.CancelRunning(ctx, req(second)))

	// CanceledRunning is reclaimable by default, Completed never is
	rec = claim(t, s)
	require.NotNil(t, rec)
	assert.Equal(t, second, rec.InternalRecordID)
	require.NoError(t, s.CompleteRunning(ctx, req(second)))

	assert.Nil(t, claim(t, s))
	assert.Equal(t, model.HandlingStatusCompleted, statusOf(t, s, first))
}

func TestFailRetryCycle(t *testing.T) {
	tests := []struct {
		name            string
		strict          bool
		claimableFailed bool
	}{
		{"default policy", false, true},
		{"strict policy", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStream(t, func(o *Options) { o.Eligibility.Strict = tt.strict })
			id := putRecord(t, s, "a")

			require.NotNil(t, claim(t, s))
			require.NoError(t, s.FailRunning(ctx, req(id)))
			assert.Equal(t, model.HandlingStatusFailed, statusOf(t, s, id))

			if tt.claimableFailed {
				rec := claim(t, s)
				require.NotNil(t, rec)
				require.NoError(t, s.FailRunning(ctx, req(id)))
			} else {
				assert.Nil(t, claim(t, s))
			}

			require.NoError(t, s.RetryFailed(ctx, req(id)))
			assert.Equal(t, model.HandlingStatusRetryFailed, statusOf(t, s, id))

			rec := claim(t, s)
			require.NotNil(t, rec)
			assert.Equal(t, model.HandlingStatusRunning, statusOf(t, s, id))
			require.NoError(t, s.CompleteRunning(ctx, req(id)))
			assert.Nil(t, claim(t, s))
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	id := putRecord(t, s, "a")

	tests := []struct {
		name string
		call func(context.Context, model.HandlingRequest) error
	}{
		{"complete", s.CompleteRunning},
		{"fail", s.FailRunning},
		{"cancel requested", s.CancelRequested},
		{"cancel running", s.CancelRunning},
		{"self cancel running", s.SelfCancelRunning},
		{"retry failed", s.RetryFailed},
	}
	for _, tt := range tests {
		err := tt.call(ctx, req(id))
		var ist *model.InvalidStateTransitionError
		if !errors.As(err, &ist) {
			t.Errorf("%s on untouched record: got %v, want InvalidStateTransitionError", tt.name, err)
			continue
		}
		if ist.Current != model.HandlingStatusNone {
			t.Errorf("%s: current = %s, want None", tt.name, ist.Current)
		}
	}

	err := s.CompleteRunning(ctx, req(999))
	assert.True(t, errors.Is(err, model.ErrArgument), "unknown record")

	for _, c := range []string{"", model.BlockingConcern, model.RecordDisabledConcern} {
		err := s.CompleteRunning(ctx, model.HandlingRequest{InternalRecordID: id, Concern: c})
		if !errors.Is(err, model.ErrArgument) {
			t.Errorf("concern %q: got %v, want ErrArgument", c, err)
		}
	}
	_, err = s.TryHandle(ctx, model.TryHandleRequest{Concern: model.BlockingConcern})
	assert.True(t, errors.Is(err, model.ErrArgument))
}

func TestCancelRequestedAndSelfCancel(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t, func(o *Options) { o.Eligibility = &handling.EligibilityPolicy{Strict: true} })
	id := putRecord(t, s, "a")

	require.NotNil(t, claim(t, s))
	require.NoError(t, s.SelfCancelRunning(ctx, req(id)))
	assert.Equal(t, model.HandlingStatusSelfCanceledRunning, statusOf(t, s, id))
	assert.Nil(t, claim(t, s), "strict policy never reclaims canceled records")

	err := s.CancelRequested(ctx, req(id))
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))
}

func TestBlockingGate(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	putRecord(t, s, "a")

	blocked, err := s.IsBlocked(ctx, nil)
	require.NoError(t, err)
	assert.False(t, blocked)

	err = s.CancelBlock(ctx, model.BlockRequest{})
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition), "unblocking an open gate")

	require.NoError(t, s.Block(ctx, model.BlockRequest{Details: "maintenance"}))
	blocked, err = s.IsBlocked(ctx, nil)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Nil(t, claim(t, s))

	err = s.Block(ctx, model.BlockRequest{})
	var ist *model.InvalidStateTransitionError
	require.True(t, errors.As(err, &ist))
	assert.Equal(t, model.HandlingStatusBlocked, ist.Current)

	require.NoError(t, s.CancelBlock(ctx, model.BlockRequest{}))
	assert.NotNil(t, claim(t, s))

	require.NoError(t, s.DisableHandlingForStream(ctx, model.BlockRequest{}))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats[0].Blocked)
	assert.Equal(t, []string{concern}, stats[0].Concerns, "reserved concerns are hidden")
	assert.Equal(t, map[string]int{concern: 1}, stats[0].HandledRecords)
	require.NoError(t, s.EnableHandlingForStream(ctx, model.BlockRequest{}))
}

func TestBlockSingleLocatorOfMany(t *testing.T) {
	ctx := context.Background()
	protocol, err := model.NewHashLocatorProtocol("p", 2)
	require.NoError(t, err)
	s := newTestStream(t, func(o *Options) { o.LocatorProtocol = protocol })

	locators := protocol.AllLocators()
	require.NoError(t, s.Block(ctx, model.BlockRequest{Locator: locators[0]}))

	blocked, err := s.IsBlocked(ctx, locators[0])
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = s.IsBlocked(ctx, locators[1])
	require.NoError(t, err)
	assert.False(t, blocked)

	// Blocking every locator fails on the one already blocked
	err = s.Block(ctx, model.BlockRequest{})
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))
}

func TestDisableHandlingForRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	first := putRecord(t, s, "a")
	second := putRecord(t, s, "b")

	require.NoError(t, s.DisableHandlingForRecord(ctx, model.HandlingRequest{InternalRecordID: first}))
	err := s.DisableHandlingForRecord(ctx, model.HandlingRequest{InternalRecordID: first})
	assert.True(t, errors.Is(err, model.ErrInvalidStateTransition))

	rec := claim(t, s)
	require.NotNil(t, rec)
	assert.Equal(t, second, rec.InternalRecordID)

	require.NoError(t, s.EnableHandlingForRecord(ctx, model.HandlingRequest{InternalRecordID: first}))
	rec, err = s.TryHandle(ctx, model.TryHandleRequest{Concern: concern, Order: model.OrderAscending})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first, rec.InternalRecordID)

	err = s.DisableHandlingForRecord(ctx, model.HandlingRequest{InternalRecordID: 42})
	assert.True(t, errors.Is(err, model.ErrArgument))
}

func TestTryHandleFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)

	order := model.TypeRepresentation{Namespace: "Acme", Name: "Order", AssemblyName: "Acme", AssemblyVersion: "1"}
	invoice := model.TypeRepresentation{Namespace: "Acme", Name: "Invoice", AssemblyName: "Acme", AssemblyVersion: "1"}
	for _, typ := range []model.TypeRepresentation{order, invoice, order} {
		_, err := s.Put(ctx, model.PutRequest{
			Metadata: model.RecordMetadata{
				TypeOfObject: model.TypeRepresentationWithAndWithoutVersion{WithVersion: typ},
				Tags:         model.Tags("source", "web"),
			},
			Payload: textPayload("{}"),
		})
		require.NoError(t, err)
	}

	rec, err := s.TryHandle(ctx, model.TryHandleRequest{Concern: concern, ObjectType: &invoice})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.InternalRecordID)

	rec, err = s.TryHandle(ctx, model.TryHandleRequest{Concern: concern, ObjectType: &order, Order: model.OrderDescending})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(3), rec.InternalRecordID)

	floor := int64(2)
	rec, err = s.TryHandle(ctx, model.TryHandleRequest{
		Concern:             "audit",
		MinInternalRecordID: &floor,
		Tags:                model.Tags("worker", "w1"),
		InheritRecordTags:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(2), rec.InternalRecordID)

	history, err := s.GetHandlingHistory(ctx, nil, 2, "audit")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []model.NamedValue{{Name: "source", Value: "web"}, {Name: "worker", Value: "w1"}}, history[1].Tags)
}

func TestCompositeHandlingStatusByTags(t *testing.T) {
	ctx := context.Background()
	build := func(reducer handling.Reducer) *Stream {
		s := newTestStream(t, func(o *Options) { o.Reducer = reducer })
		putRecord(t, s, "a", model.Tags("env", "prod")...)
		putRecord(t, s, "b", model.Tags("env", "prod")...)
		putRecord(t, s, "c", model.Tags("env", "dev")...)

		rec := claim(t, s)
		require.NoError(t, s.CompleteRunning(ctx, req(rec.InternalRecordID)))
		return s
	}

	prod := model.CompositeStatusRequest{Concern: concern, Tags: model.Tags("env", "prod")}

	s := build(handling.UnresolvedFirst())
	st, err := s.GetCompositeHandlingStatusByTags(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusNone, st, "record b has no entries yet")

	require.NotNil(t, claim(t, s))
	st, err = s.GetCompositeHandlingStatusByTags(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusRunning, st)

	st, err = s.GetCompositeHandlingStatusByTags(ctx, model.CompositeStatusRequest{Concern: concern, Tags: model.Tags("env", "qa")})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusNone, st, "no matching records")

	s = build(handling.CompletedFirst())
	st, err = s.GetCompositeHandlingStatusByTags(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusCompleted, st)

	_, err = s.GetCompositeHandlingStatusByTags(ctx, model.CompositeStatusRequest{Concern: concern})
	assert.True(t, errors.Is(err, model.ErrArgument))
}

func TestCompositeHandlingStatusByIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	a := putRecord(t, s, "a")
	putRecord(t, s, "b")
	putRecord(t, s, "c")

	require.NotNil(t, claim(t, s))
	require.NoError(t, s.FailRunning(ctx, req(a)))

	st, err := s.GetCompositeHandlingStatusByIDs(ctx, model.CompositeStatusRequest{Concern: concern, IDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusFailed, st)

	st, err = s.GetCompositeHandlingStatusByIDs(ctx, model.CompositeStatusRequest{Concern: concern, IDs: []string{"b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusNone, st)

	st, err = s.GetCompositeHandlingStatusByIDs(ctx, model.CompositeStatusRequest{Concern: concern, IDs: []string{"nope"}})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusNone, st)

	_, err = s.GetCompositeHandlingStatusByIDs(ctx, model.CompositeStatusRequest{Concern: concern})
	assert.True(t, errors.Is(err, model.ErrArgument))
}

func TestReadsReturnDetachedCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)

	_, err := s.Put(ctx, model.PutRequest{
		Metadata: model.RecordMetadata{StringSerializedID: strPtr("a"), Tags: model.Tags("env", "prod")},
		Payload:  model.Payload{Format: model.SerializationFormatBinary, Binary: []byte{1, 2, 3}},
	})
	require.NoError(t, err)

	spoil := func(rec *model.Record) {
		rec.Metadata.Tags[0].Value = "dev"
		rec.Payload.Binary[0] = 9
		*rec.Metadata.StringSerializedID = "b"
	}

	tests := []struct {
		name string
		read func(t *testing.T) *model.Record
	}{
		{"latest", func(t *testing.T) *model.Record {
			rec, err := s.GetLatestRecord(ctx, model.RecordQuery{})
			require.NoError(t, err)
			return rec
		}},
		{"all", func(t *testing.T) *model.Record {
			recs, err := s.GetAllRecords(ctx, model.RecordQuery{})
			require.NoError(t, err)
			require.Len(t, recs, 1)
			return &recs[0]
		}},
		{"by internal id", func(t *testing.T) *model.Record {
			rec, err := s.GetRecordByInternalID(ctx, nil, 1)
			require.NoError(t, err)
			return rec
		}},
		{"claim", func(t *testing.T) *model.Record {
			rec, err := s.TryHandle(ctx, model.TryHandleRequest{Concern: concern})
			require.NoError(t, err)
			return rec
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.read(t)
			require.NotNil(t, rec)
			spoil(rec)

			stored, err := s.GetRecordByInternalID(ctx, nil, 1)
			require.NoError(t, err)
			if got := stored.Metadata.Tags[0].Value; got != "prod" {
				t.Errorf("stored tag = %q, want prod", got)
			}
			if got := stored.Payload.Binary[0]; got != 1 {
				t.Errorf("stored binary[0] = %d, want 1", got)
			}
			if got := *stored.Metadata.StringSerializedID; got != "a" {
				t.Errorf("stored id = %q, want a", got)
			}
		})
	}
}

func TestHandlingHistoryDetached(t *testing.T) {
	ctx := context.Background()
	s := newTestStream(t)
	id := putRecord(t, s, "a")

	tags := model.Tags("worker", "w1")
	rec, err := s.TryHandle(ctx, model.TryHandleRequest{Concern: concern, Tags: tags})
	require.NoError(t, err)
	require.NotNil(t, rec)
	tags[0].Value = "w2"

	history, err := s.GetHandlingHistory(ctx, nil, id, concern)
	require.NoError(t, err)
	require.Len(t, history, 2)
	history[1].Tags[0].Value = "w3"
	*history[1].StringSerializedID = "z"

	again, err := s.GetHandlingHistory(ctx, nil, id, concern)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for _, e := range again {
		assert.Equal(t, "w1", e.Tags[0].Value)
		assert.Equal(t, "a", *e.StringSerializedID)
	}
}
