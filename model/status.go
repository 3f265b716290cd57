package model

import "strings"

// HandlingStatus is the status of one (record, concern) pair.
type HandlingStatus uint8

const (
	// HandlingStatusNone is reported for pairs with no handling entries.
	// It is never written to a ledger.
	HandlingStatusNone HandlingStatus = iota
	HandlingStatusRequested
	HandlingStatusRunning
	HandlingStatusCompleted
	HandlingStatusFailed
	HandlingStatusRetryFailed
	HandlingStatusCanceled
	HandlingStatusCanceledRunning
	HandlingStatusSelfCanceledRunning
	HandlingStatusBlocked
)

var handlingStatusNames = [...]string{
	HandlingStatusNone:                "None",
	HandlingStatusRequested:           "Requested",
	HandlingStatusRunning:             "Running",
	HandlingStatusCompleted:           "Completed",
	HandlingStatusFailed:              "Failed",
	HandlingStatusRetryFailed:         "RetryFailed",
	HandlingStatusCanceled:            "Canceled",
	HandlingStatusCanceledRunning:     "CanceledRunning",
	HandlingStatusSelfCanceledRunning: "SelfCanceledRunning",
	HandlingStatusBlocked:             "Blocked",
}

// AllHandlingStatuses lists every status that can be written to a ledger.
var AllHandlingStatuses = []HandlingStatus{
	HandlingStatusRequested,
	HandlingStatusRunning,
	HandlingStatusCompleted,
	HandlingStatusFailed,
	HandlingStatusRetryFailed,
	HandlingStatusCanceled,
	HandlingStatusCanceledRunning,
	HandlingStatusSelfCanceledRunning,
	HandlingStatusBlocked,
}

func (s HandlingStatus) String() string {
	if int(s) < len(handlingStatusNames) {
		return handlingStatusNames[s]
	}
	return "Unknown"
}

// Valid reports whether s is a known status, including None.
func (s HandlingStatus) Valid() bool {
	return int(s) < len(handlingStatusNames)
}

func (s HandlingStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &NotSupportedError{What: "handling status", Value: uint8(s)}
	}
	return []byte(s.String()), nil
}

func (s *HandlingStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseHandlingStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseHandlingStatus parses a status name case-insensitively.
func ParseHandlingStatus(name string) (HandlingStatus, error) {
	for i, n := range handlingStatusNames {
		if strings.EqualFold(n, name) {
			return HandlingStatus(i), nil
		}
	}
	return HandlingStatusNone, NewArgumentError("status", "unknown handling status %q", name)
}

// VersionMatchStrategy selects how type representations are compared.
// The zero value is Any.
type VersionMatchStrategy uint8

const (
	VersionMatchAny VersionMatchStrategy = iota
	VersionMatchSpecific
)

func (v VersionMatchStrategy) String() string {
	switch v {
	case VersionMatchAny:
		return "Any"
	case VersionMatchSpecific:
		return "Specific"
	default:
		return "Unknown"
	}
}

// Validate rejects values outside the enumeration.
func (v VersionMatchStrategy) Validate() error {
	if v > VersionMatchSpecific {
		return NewArgumentError("versionMatchStrategy", "unknown value %d", uint8(v))
	}
	return nil
}

// ParseVersionMatchStrategy parses "any" or "specific".
func ParseVersionMatchStrategy(s string) (VersionMatchStrategy, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return VersionMatchAny, nil
	case "specific":
		return VersionMatchSpecific, nil
	}
	return VersionMatchAny, NewArgumentError("versionMatchStrategy", "unknown value %q", s)
}

// TagMatchScope is the scope applied to one side of a tag comparison.
type TagMatchScope uint8

const (
	tagMatchScopeUnset TagMatchScope = iota
	TagMatchScopeAny
	TagMatchScopeAll
)

func (s TagMatchScope) String() string {
	switch s {
	case TagMatchScopeAny:
		return "Any"
	case TagMatchScopeAll:
		return "All"
	case tagMatchScopeUnset:
		return "Unset"
	default:
		return "Unknown"
	}
}

// TagMatchStrategy pairs the scope of the find set with the scope of the
// target set. The zero value resolves to DefaultTagMatchStrategy.
type TagMatchStrategy struct {
	ScopeOfFindSet TagMatchScope
	ScopeOfTarget  TagMatchScope
}

// DefaultTagMatchStrategy requires every queried tag on the target and
// ignores extra target tags.
var DefaultTagMatchStrategy = TagMatchStrategy{
	ScopeOfFindSet: TagMatchScopeAll,
	ScopeOfTarget:  TagMatchScopeAny,
}

// OrDefault returns DefaultTagMatchStrategy for the zero value.
func (s TagMatchStrategy) OrDefault() TagMatchStrategy {
	if s == (TagMatchStrategy{}) {
		return DefaultTagMatchStrategy
	}
	return s
}

func (s TagMatchStrategy) String() string {
	return s.ScopeOfFindSet.String() + "/" + s.ScopeOfTarget.String()
}

// ExistingRecordStrategy is applied by Put when a prior record matches.
type ExistingRecordStrategy uint8

const (
	ExistingRecordNone ExistingRecordStrategy = iota
	DoNotWriteIfFoundByID
	DoNotWriteIfFoundByIDAndType
	DoNotWriteIfFoundByIDAndTypeAndContent
	ThrowIfFoundByID
	ThrowIfFoundByIDAndType
	ThrowIfFoundByIDAndTypeAndContent
	PruneIfFoundByID
	PruneIfFoundByIDAndType
	PruneIfFoundByIDAndTypeAndContent
)

var existingRecordStrategyNames = [...]string{
	ExistingRecordNone:                     "None",
	DoNotWriteIfFoundByID:                  "DoNotWriteIfFoundById",
	DoNotWriteIfFoundByIDAndType:           "DoNotWriteIfFoundByIdAndType",
	DoNotWriteIfFoundByIDAndTypeAndContent: "DoNotWriteIfFoundByIdAndTypeAndContent",
	ThrowIfFoundByID:                       "ThrowIfFoundById",
	ThrowIfFoundByIDAndType:                "ThrowIfFoundByIdAndType",
	ThrowIfFoundByIDAndTypeAndContent:      "ThrowIfFoundByIdAndTypeAndContent",
	PruneIfFoundByID:                       "PruneIfFoundById",
	PruneIfFoundByIDAndType:                "PruneIfFoundByIdAndType",
	PruneIfFoundByIDAndTypeAndContent:      "PruneIfFoundByIdAndTypeAndContent",
}

func (s ExistingRecordStrategy) String() string {
	if int(s) < len(existingRecordStrategyNames) {
		return existingRecordStrategyNames[s]
	}
	return "Unknown"
}

// MatchGranularity is how closely a prior record must match a new one.
type MatchGranularity uint8

const (
	MatchNone MatchGranularity = iota
	MatchByID
	MatchByIDAndType
	MatchByIDAndTypeAndContent
)

// ExistingRecordAction is what Put does with matched prior records.
type ExistingRecordAction uint8

const (
	ActionAppend ExistingRecordAction = iota
	ActionSkip
	ActionThrow
	ActionPrune
)

// Decompose splits the strategy into granularity and action.
func (s ExistingRecordStrategy) Decompose() (MatchGranularity, ExistingRecordAction, error) {
	switch s {
	case ExistingRecordNone:
		return MatchNone, ActionAppend, nil
	case DoNotWriteIfFoundByID:
		return MatchByID, ActionSkip, nil
	case DoNotWriteIfFoundByIDAndType:
		return MatchByIDAndType, ActionSkip, nil
	case DoNotWriteIfFoundByIDAndTypeAndContent:
		return MatchByIDAndTypeAndContent, ActionSkip, nil
	case ThrowIfFoundByID:
		return MatchByID, ActionThrow, nil
	case ThrowIfFoundByIDAndType:
		return MatchByIDAndType, ActionThrow, nil
	case ThrowIfFoundByIDAndTypeAndContent:
		return MatchByIDAndTypeAndContent, ActionThrow, nil
	case PruneIfFoundByID:
		return MatchByID, ActionPrune, nil
	case PruneIfFoundByIDAndType:
		return MatchByIDAndType, ActionPrune, nil
	case PruneIfFoundByIDAndTypeAndContent:
		return MatchByIDAndTypeAndContent, ActionPrune, nil
	}
	return MatchNone, ActionAppend, NewArgumentError("existingRecordStrategy", "unknown value %d", uint8(s))
}

// ParseExistingRecordStrategy parses a strategy name case-insensitively.
func ParseExistingRecordStrategy(name string) (ExistingRecordStrategy, error) {
	if name == "" {
		return ExistingRecordNone, nil
	}
	for i, n := range existingRecordStrategyNames {
		if strings.EqualFold(n, name) {
			return ExistingRecordStrategy(i), nil
		}
	}
	return ExistingRecordNone, NewArgumentError("existingRecordStrategy", "unknown value %q", name)
}

// ExistingStreamStrategy is applied by CreateStream. It has no zero value
// default; callers choose explicitly.
type ExistingStreamStrategy uint8

const (
	ExistingStreamSkip ExistingStreamStrategy = iota + 1
	ExistingStreamOverwrite
	ExistingStreamThrow
)

func (s ExistingStreamStrategy) String() string {
	switch s {
	case ExistingStreamSkip:
		return "Skip"
	case ExistingStreamOverwrite:
		return "Overwrite"
	case ExistingStreamThrow:
		return "Throw"
	default:
		return "Unknown"
	}
}

// MissingStreamStrategy is applied by DeleteStream.
type MissingStreamStrategy uint8

const (
	MissingStreamSkip MissingStreamStrategy = iota + 1
	MissingStreamThrow
)

func (s MissingStreamStrategy) String() string {
	switch s {
	case MissingStreamSkip:
		return "Skip"
	case MissingStreamThrow:
		return "Throw"
	default:
		return "Unknown"
	}
}

// Order is the direction records are visited in.
type Order uint8

const (
	OrderAscending Order = iota
	OrderDescending
)

func (o Order) String() string {
	switch o {
	case OrderAscending:
		return "Ascending"
	case OrderDescending:
		return "Descending"
	default:
		return "Unknown"
	}
}

// Validate rejects values outside the enumeration.
func (o Order) Validate() error {
	if o > OrderDescending {
		return NewArgumentError("order", "unknown value %d", uint8(o))
	}
	return nil
}
