package model

import "time"

// CreateStreamRequest creates the stream's partitions.
type CreateStreamRequest struct {
	OnExisting ExistingStreamStrategy
}

// CreateStreamResult reports what CreateStream did. Overwrite sets both flags.
type CreateStreamResult struct {
	AlreadyExisted bool `json:"alreadyExisted"`
	WasCreated     bool `json:"wasCreated"`
}

// NewCreateStreamResult rejects a result where nothing existed and nothing
// was created.
func NewCreateStreamResult(alreadyExisted, wasCreated bool) (CreateStreamResult, error) {
	if !alreadyExisted && !wasCreated {
		return CreateStreamResult{}, NewArgumentError("result", "stream neither existed nor was created")
	}
	return CreateStreamResult{AlreadyExisted: alreadyExisted, WasCreated: wasCreated}, nil
}

// DeleteStreamRequest drops every partition.
type DeleteStreamRequest struct {
	OnMissing MissingStreamStrategy
}

type DeleteStreamResult struct {
	Existed bool `json:"existed"`
}

// PutRequest appends one record. Locator nil routes by the stream's
// LocatorProtocol.
type PutRequest struct {
	Locator                Locator
	Metadata               RecordMetadata
	Payload                Payload
	ExistingRecordStrategy ExistingRecordStrategy
	VersionMatchStrategy   VersionMatchStrategy

	// RecordRetentionCount bounds how many matching records survive a
	// PruneIfFoundBy* write, including the new one. Nil keeps only the new
	// record.
	RecordRetentionCount *int
}

// PutResult reports the outcome of Put. NewInternalRecordID is nil exactly
// when the write was skipped because ExistingRecordIDs is non-empty.
type PutResult struct {
	Locator             string  `json:"locator"`
	NewInternalRecordID *int64  `json:"newInternalRecordId,omitempty"`
	ExistingRecordIDs   []int64 `json:"existingRecordIds,omitempty"`
	PrunedRecordIDs     []int64 `json:"prunedRecordIds,omitempty"`
}

// NewPutResult enforces the PutResult invariant.
func NewPutResult(locator string, newID *int64, existing, pruned []int64) (PutResult, error) {
	if newID == nil && len(existing) == 0 {
		return PutResult{}, NewArgumentError("result", "no new record id and no existing record ids")
	}
	if newID != nil && len(existing) > 0 {
		return PutResult{}, NewArgumentError("result", "new record id %d reported alongside existing ids %v", *newID, existing)
	}
	return PutResult{
		Locator:             locator,
		NewInternalRecordID: newID,
		ExistingRecordIDs:   existing,
		PrunedRecordIDs:     pruned,
	}, nil
}

// RecordQuery filters records. Every field is optional; unset filters
// match everything.
type RecordQuery struct {
	Locator              Locator
	InternalRecordID     *int64
	StringSerializedID   *string
	IDType               *TypeRepresentation
	ObjectType           *TypeRepresentation
	VersionMatchStrategy VersionMatchStrategy
	Tags                 []NamedValue
	TagMatchStrategy     TagMatchStrategy
	MinInternalRecordID  *int64
	Order                Order

	// Limit caps the records GetAllRecords returns; 0 means no cap.
	Limit int
}

// TryHandleRequest claims the next eligible record for Concern.
type TryHandleRequest struct {
	Concern              string
	Locator              Locator
	IDType               *TypeRepresentation
	ObjectType           *TypeRepresentation
	VersionMatchStrategy VersionMatchStrategy
	MinInternalRecordID  *int64
	Tags                 []NamedValue
	InheritRecordTags    bool
	Details              string
	Order                Order
}

// HandlingRequest addresses one (record, concern) pair.
type HandlingRequest struct {
	Locator          Locator
	InternalRecordID int64
	Concern          string
	Details          string
	Tags             []NamedValue
}

// CompositeStatusRequest selects the records whose latest statuses are
// reduced. By-ids uses IDs (string serialized ids); by-tags uses Tags.
type CompositeStatusRequest struct {
	Concern              string
	Locator              Locator
	IDs                  []string
	IDType               *TypeRepresentation
	VersionMatchStrategy VersionMatchStrategy
	Tags                 []NamedValue
	TagMatchStrategy     TagMatchStrategy
}

// BlockRequest targets the blocking gate. Locator nil means every locator.
type BlockRequest struct {
	Locator Locator
	Details string
	Tags    []NamedValue
}

// PruneRequest removes everything below a threshold. Locator nil means
// every locator. PruneBeforeDate reads Before, PruneBeforeID reads BeforeID.
type PruneRequest struct {
	Locator  Locator
	Before   time.Time
	BeforeID int64
}

type PruneResult struct {
	RecordsRemoved         int     `json:"recordsRemoved"`
	HandlingEntriesRemoved int     `json:"handlingEntriesRemoved"`
	RemovedRecordIDs       []int64 `json:"removedRecordIds,omitempty"`
}

// Add merges another partition's result.
func (r *PruneResult) Add(o PruneResult) {
	r.RecordsRemoved += o.RecordsRemoved
	r.HandlingEntriesRemoved += o.HandlingEntriesRemoved
	r.RemovedRecordIDs = append(r.RemovedRecordIDs, o.RemovedRecordIDs...)
}

// PartitionStats is a point-in-time summary of one partition.
type PartitionStats struct {
	Locator               string         `json:"locator"`
	Records               int            `json:"records"`
	HandlingEntries       int            `json:"handlingEntries"`
	LastInternalRecordID  int64          `json:"lastInternalRecordId"`
	LastHandlingEntryID   int64          `json:"lastHandlingEntryId"`
	Blocked               bool           `json:"blocked"`
	DisabledRecords       int            `json:"disabledRecords"`
	Concerns              []string       `json:"concerns"`
	HandledRecords        map[string]int `json:"handledRecords"`
	IDFilterSaturated     bool           `json:"idFilterSaturated"`
	OldestRecordTimestamp *time.Time     `json:"oldestRecordTimestamp,omitempty"`
}
