package handling

import (
	"fmt"

	"github.com/maxpert/recordstream/model"
)

// Reducer collapses the latest statuses of several records into one
// composite status. Implementations must be pure and deterministic.
type Reducer interface {
	Reduce(statuses []model.HandlingStatus) (model.HandlingStatus, error)
}

// PrecedenceReducer picks the status that appears earliest in its order.
type PrecedenceReducer struct {
	name  string
	order []model.HandlingStatus
	rank  map[model.HandlingStatus]int
}

// NewPrecedenceReducer builds a reducer from a complete ranking: every
// status, None included, must appear exactly once. Highest precedence
// first.
func NewPrecedenceReducer(name string, order ...model.HandlingStatus) (*PrecedenceReducer, error) {
	rank := make(map[model.HandlingStatus]int, len(order))
	for i, s := range order {
		if !s.Valid() {
			return nil, model.NewArgumentError("order", "unknown status %d", uint8(s))
		}
		if _, dup := rank[s]; dup {
			return nil, model.NewArgumentError("order", "status %s listed twice", s)
		}
		rank[s] = i
	}
	if _, ok := rank[model.HandlingStatusNone]; !ok {
		return nil, model.NewArgumentError("order", "status None missing")
	}
	for _, s := range model.AllHandlingStatuses {
		if _, ok := rank[s]; !ok {
			return nil, model.NewArgumentError("order", "status %s missing", s)
		}
	}
	return &PrecedenceReducer{name: name, order: order, rank: rank}, nil
}

func mustPrecedence(name string, order ...model.HandlingStatus) *PrecedenceReducer {
	r, err := NewPrecedenceReducer(name, order...)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in precedence %s: %v", name, err))
	}
	return r
}

// UnresolvedFirst reports the most troubled status: anything blocked,
// failed or in flight outranks work that is finished.
func UnresolvedFirst() *PrecedenceReducer {
	return mustPrecedence("unresolved-first",
		model.HandlingStatusBlocked,
		model.HandlingStatusFailed,
		model.HandlingStatusRunning,
		model.HandlingStatusRetryFailed,
		model.HandlingStatusRequested,
		model.HandlingStatusNone,
		model.HandlingStatusCanceledRunning,
		model.HandlingStatusSelfCanceledRunning,
		model.HandlingStatusCanceled,
		model.HandlingStatusCompleted,
	)
}

// CompletedFirst reports Completed as soon as any record completed.
func CompletedFirst() *PrecedenceReducer {
	return mustPrecedence("completed-first",
		model.HandlingStatusCompleted,
		model.HandlingStatusCanceled,
		model.HandlingStatusSelfCanceledRunning,
		model.HandlingStatusCanceledRunning,
		model.HandlingStatusRunning,
		model.HandlingStatusRetryFailed,
		model.HandlingStatusRequested,
		model.HandlingStatusFailed,
		model.HandlingStatusBlocked,
		model.HandlingStatusNone,
	)
}

// ReducerByName resolves a configured policy name.
func ReducerByName(name string) (Reducer, error) {
	switch name {
	case "unresolved-first":
		return UnresolvedFirst(), nil
	case "completed-first":
		return CompletedFirst(), nil
	}
	return nil, &model.NotSupportedError{What: "composite status policy", Value: name}
}

func (r *PrecedenceReducer) Name() string { return r.name }

func (r *PrecedenceReducer) Reduce(statuses []model.HandlingStatus) (model.HandlingStatus, error) {
	if len(statuses) == 0 {
		return model.HandlingStatusNone, model.NewArgumentError("statuses", "must not be empty")
	}
	best := -1
	for _, s := range statuses {
		rank, ok := r.rank[s]
		if !ok {
			return model.HandlingStatusNone, &model.NotSupportedError{What: "handling status", Value: uint8(s)}
		}
		if best < 0 || rank < best {
			best = rank
		}
	}
	return r.order[best], nil
}
