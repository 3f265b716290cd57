package handling

import "github.com/maxpert/recordstream/model"

// EligibilityPolicy decides which current statuses TryHandle may claim.
// Records with no entries for the concern are always claimable.
type EligibilityPolicy struct {
	// ReclaimRunning lets TryHandle re-select a record that is Running,
	// which is the only recovery path for a worker that died mid-handling.
	ReclaimRunning bool

	// Strict limits claims to Requested and RetryFailed (plus Running when
	// ReclaimRunning is set). Failed records then need an explicit
	// RetryFailed, and canceled-while-running records are never reclaimed.
	Strict bool
}

// DefaultEligibility claims everything except Completed and Canceled.
func DefaultEligibility() EligibilityPolicy {
	return EligibilityPolicy{ReclaimRunning: true}
}

// EligibilityByName resolves a configured policy name.
func EligibilityByName(name string, reclaimRunning bool) (EligibilityPolicy, error) {
	switch name {
	case "", "default":
		return EligibilityPolicy{ReclaimRunning: reclaimRunning}, nil
	case "strict":
		return EligibilityPolicy{ReclaimRunning: reclaimRunning, Strict: true}, nil
	}
	return EligibilityPolicy{}, &model.NotSupportedError{What: "eligibility policy", Value: name}
}

// Claimable reports whether a record whose current status is s may be
// claimed.
func (p EligibilityPolicy) Claimable(s model.HandlingStatus) bool {
	switch s {
	case model.HandlingStatusNone, model.HandlingStatusRequested, model.HandlingStatusRetryFailed:
		return true
	case model.HandlingStatusRunning:
		return p.ReclaimRunning
	case model.HandlingStatusFailed, model.HandlingStatusCanceledRunning, model.HandlingStatusSelfCanceledRunning:
		return !p.Strict
	default:
		// Completed, Canceled and Blocked
		return false
	}
}
