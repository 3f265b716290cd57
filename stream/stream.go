// Package stream defines the operation surface shared by record stream
// realizations, plus the helpers layered over it: an async adapter, a name
// registry and typed object helpers.
package stream

import (
	"context"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/notify"
)

// ReadWriteStream is the full operation surface of one named stream.
type ReadWriteStream interface {
	Name() string

	// Lifecycle
	CreateStream(ctx context.Context, req model.CreateStreamRequest) (model.CreateStreamResult, error)
	DeleteStream(ctx context.Context, req model.DeleteStreamRequest) (model.DeleteStreamResult, error)

	// Write
	Put(ctx context.Context, req model.PutRequest) (model.PutResult, error)
	GetNextUniqueLong(ctx context.Context) (int64, error)

	// Read
	GetLatestRecord(ctx context.Context, q model.RecordQuery) (*model.Record, error)
	GetAllRecords(ctx context.Context, q model.RecordQuery) ([]model.Record, error)
	GetRecordByInternalID(ctx context.Context, locator model.Locator, recordID int64) (*model.Record, error)
	GetDistinctStringSerializedIDs(ctx context.Context, q model.RecordQuery) ([]model.StringSerializedIdentifier, error)

	// Handling
	TryHandle(ctx context.Context, req model.TryHandleRequest) (*model.Record, error)
	CompleteRunning(ctx context.Context, req model.HandlingRequest) error
	FailRunning(ctx context.Context, req model.HandlingRequest) error
	CancelRequested(ctx context.Context, req model.HandlingRequest) error
	CancelRunning(ctx context.Context, req model.HandlingRequest) error
	SelfCancelRunning(ctx context.Context, req model.HandlingRequest) error
	RetryFailed(ctx context.Context, req model.HandlingRequest) error
	GetHandlingStatus(ctx context.Context, locator model.Locator, recordID int64, concern string) (model.HandlingStatus, error)
	GetHandlingHistory(ctx context.Context, locator model.Locator, recordID int64, concern string) ([]model.HandlingEntry, error)
	GetCompositeHandlingStatusByIDs(ctx context.Context, req model.CompositeStatusRequest) (model.HandlingStatus, error)
	GetCompositeHandlingStatusByTags(ctx context.Context, req model.CompositeStatusRequest) (model.HandlingStatus, error)
	Block(ctx context.Context, req model.BlockRequest) error
	CancelBlock(ctx context.Context, req model.BlockRequest) error
	IsBlocked(ctx context.Context, locator model.Locator) (bool, error)
	DisableHandlingForStream(ctx context.Context, req model.BlockRequest) error
	EnableHandlingForStream(ctx context.Context, req model.BlockRequest) error
	DisableHandlingForRecord(ctx context.Context, req model.HandlingRequest) error
	EnableHandlingForRecord(ctx context.Context, req model.HandlingRequest) error

	// Management
	PruneBeforeDate(ctx context.Context, req model.PruneRequest) (model.PruneResult, error)
	PruneBeforeID(ctx context.Context, req model.PruneRequest) (model.PruneResult, error)
	Stats(ctx context.Context) ([]model.PartitionStats, error)
}

// Subscriber is implemented by streams that publish change signals.
type Subscriber interface {
	Subscribe(filter notify.Filter) (<-chan notify.Signal, func())
}

// Observer receives every change after the stream has released its
// partition locks. Implementations must not block for long and must not
// call back into lifecycle operations of the same stream.
type Observer interface {
	RecordWritten(stream, locator string, rec model.Record)
	HandlingRecorded(stream, locator string, entry model.HandlingEntry)
	Pruned(stream, locator string, result model.PruneResult)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) RecordWritten(stream, locator string, rec model.Record) {
	for _, ob := range o {
		ob.RecordWritten(stream, locator, rec)
	}
}

func (o Observers) HandlingRecorded(stream, locator string, entry model.HandlingEntry) {
	for _, ob := range o {
		ob.HandlingRecorded(stream, locator, entry)
	}
}

func (o Observers) Pruned(stream, locator string, result model.PruneResult) {
	for _, ob := range o {
		ob.Pruned(stream, locator, result)
	}
}
