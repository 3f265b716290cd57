package handling

import (
	"errors"
	"testing"

	"github.com/maxpert/recordstream/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrecedenceReducer_EmptyInput(t *testing.T) {
	_, err := UnresolvedFirst().Reduce(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrArgument))
}

func TestUnresolvedFirst(t *testing.T) {
	r := UnresolvedFirst()
	tests := []struct {
		name  string
		input []model.HandlingStatus
		want  model.HandlingStatus
	}{
		{"single", []model.HandlingStatus{model.HandlingStatusCompleted}, model.HandlingStatusCompleted},
		{"failed beats completed", []model.HandlingStatus{model.HandlingStatusCompleted, model.HandlingStatusFailed}, model.HandlingStatusFailed},
		{"running beats requested", []model.HandlingStatus{model.HandlingStatusRequested, model.HandlingStatusRunning}, model.HandlingStatusRunning},
		{"unhandled beats canceled", []model.HandlingStatus{model.HandlingStatusCanceled, model.HandlingStatusNone}, model.HandlingStatusNone},
		{"blocked beats everything", []model.HandlingStatus{model.HandlingStatusFailed, model.HandlingStatusBlocked, model.HandlingStatusRunning}, model.HandlingStatusBlocked},
		{"all completed", []model.HandlingStatus{model.HandlingStatusCompleted, model.HandlingStatusCompleted}, model.HandlingStatusCompleted},
		{"cancel variants", []model.HandlingStatus{model.HandlingStatusCanceled, model.HandlingStatusSelfCanceledRunning, model.HandlingStatusCompleted}, model.HandlingStatusSelfCanceledRunning},
	}
	for _, tt := range tests {
		got, err := r.Reduce(tt.input)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestCompletedFirst(t *testing.T) {
	r := CompletedFirst()
	got, err := r.Reduce([]model.HandlingStatus{model.HandlingStatusFailed, model.HandlingStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusCompleted, got)

	got, err = r.Reduce([]model.HandlingStatus{model.HandlingStatusNone, model.HandlingStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, model.HandlingStatusFailed, got)
}

func TestReducer_OrderIndependent(t *testing.T) {
	r := UnresolvedFirst()
	a, err := r.Reduce([]model.HandlingStatus{model.HandlingStatusCompleted, model.HandlingStatusRetryFailed, model.HandlingStatusRequested})
	require.NoError(t, err)
	b, err := r.Reduce([]model.HandlingStatus{model.HandlingStatusRequested, model.HandlingStatusCompleted, model.HandlingStatusRetryFailed})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, model.HandlingStatusRetryFailed, a)
}

func TestNewPrecedenceReducer_Validation(t *testing.T) {
	_, err := NewPrecedenceReducer("short", model.HandlingStatusCompleted, model.HandlingStatusNone)
	assert.True(t, errors.Is(err, model.ErrArgument), "incomplete ranking must be rejected")

	full := append([]model.HandlingStatus(nil), UnresolvedFirst().order...)
	_, err = NewPrecedenceReducer("dup", append(full, model.HandlingStatusFailed)...)
	assert.True(t, errors.Is(err, model.ErrArgument), "duplicates must be rejected")

	custom, err := NewPrecedenceReducer("custom", full...)
	require.NoError(t, err)
	assert.Equal(t, "custom", custom.Name())
}

func TestReducerByName(t *testing.T) {
	for _, name := range []string{"unresolved-first", "completed-first"} {
		if _, err := ReducerByName(name); err != nil {
			t.Errorf("ReducerByName(%q): %v", name, err)
		}
	}
	_, err := ReducerByName("majority")
	assert.True(t, errors.Is(err, model.ErrNotSupported))
}
