package stream

import (
	"context"

	"github.com/jizhuozhi/go-future"
	"github.com/maxpert/recordstream/model"
)

// Async exposes a stream through futures. The wrapped operations never
// block on I/O, so every future is already resolved when returned.
type Async struct {
	stream ReadWriteStream
}

func NewAsync(s ReadWriteStream) *Async {
	return &Async{stream: s}
}

// Stream returns the wrapped synchronous stream.
func (a *Async) Stream() ReadWriteStream {
	return a.stream
}

func resolved[T any](v T, err error) *future.Future[T] {
	p := future.NewPromise[T]()
	p.Set(v, err)
	return p.Future()
}

func done(err error) *future.Future[struct{}] {
	return resolved(struct{}{}, err)
}

func (a *Async) CreateStreamAsync(ctx context.Context, req model.CreateStreamRequest) *future.Future[model.CreateStreamResult] {
	return resolved(a.stream.CreateStream(ctx, req))
}

func (a *Async) DeleteStreamAsync(ctx context.Context, req model.DeleteStreamRequest) *future.Future[model.DeleteStreamResult] {
	return resolved(a.stream.DeleteStream(ctx, req))
}

func (a *Async) PutAsync(ctx context.Context, req model.PutRequest) *future.Future[model.PutResult] {
	return resolved(a.stream.Put(ctx, req))
}

func (a *Async) GetNextUniqueLongAsync(ctx context.Context) *future.Future[int64] {
	return resolved(a.stream.GetNextUniqueLong(ctx))
}

func (a *Async) GetLatestRecordAsync(ctx context.Context, q model.RecordQuery) *future.Future[*model.Record] {
	return resolved(a.stream.GetLatestRecord(ctx, q))
}

func (a *Async) GetAllRecordsAsync(ctx context.Context, q model.RecordQuery) *future.Future[[]model.Record] {
	return resolved(a.stream.GetAllRecords(ctx, q))
}

func (a *Async) GetRecordByInternalIDAsync(ctx context.Context, locator model.Locator, recordID int64) *future.Future[*model.Record] {
	return resolved(a.stream.GetRecordByInternalID(ctx, locator, recordID))
}

func (a *Async) GetDistinctStringSerializedIDsAsync(ctx context.Context, q model.RecordQuery) *future.Future[[]model.StringSerializedIdentifier] {
	return resolved(a.stream.GetDistinctStringSerializedIDs(ctx, q))
}

func (a *Async) TryHandleAsync(ctx context.Context, req model.TryHandleRequest) *future.Future[*model.Record] {
	return resolved(a.stream.TryHandle(ctx, req))
}

func (a *Async) CompleteRunningAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.CompleteRunning(ctx, req))
}

func (a *Async) FailRunningAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.FailRunning(ctx, req))
}

func (a *Async) CancelRequestedAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.CancelRequested(ctx, req))
}

func (a *Async) CancelRunningAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.CancelRunning(ctx, req))
}

func (a *Async) SelfCancelRunningAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.SelfCancelRunning(ctx, req))
}

func (a *Async) RetryFailedAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.RetryFailed(ctx, req))
}

func (a *Async) GetHandlingStatusAsync(ctx context.Context, locator model.Locator, recordID int64, concern string) *future.Future[model.HandlingStatus] {
	return resolved(a.stream.GetHandlingStatus(ctx, locator, recordID, concern))
}

func (a *Async) GetHandlingHistoryAsync(ctx context.Context, locator model.Locator, recordID int64, concern string) *future.Future[[]model.HandlingEntry] {
	return resolved(a.stream.GetHandlingHistory(ctx, locator, recordID, concern))
}

func (a *Async) GetCompositeHandlingStatusByIDsAsync(ctx context.Context, req model.CompositeStatusRequest) *future.Future[model.HandlingStatus] {
	return resolved(a.stream.GetCompositeHandlingStatusByIDs(ctx, req))
}

func (a *Async) GetCompositeHandlingStatusByTagsAsync(ctx context.Context, req model.CompositeStatusRequest) *future.Future[model.HandlingStatus] {
	return resolved(a.stream.GetCompositeHandlingStatusByTags(ctx, req))
}

func (a *Async) BlockAsync(ctx context.Context, req model.BlockRequest) *future.Future[struct{}] {
	return done(a.stream.Block(ctx, req))
}

func (a *Async) CancelBlockAsync(ctx context.Context, req model.BlockRequest) *future.Future[struct{}] {
	return done(a.stream.CancelBlock(ctx, req))
}

func (a *Async) IsBlockedAsync(ctx context.Context, locator model.Locator) *future.Future[bool] {
	return resolved(a.stream.IsBlocked(ctx, locator))
}

func (a *Async) DisableHandlingForStreamAsync(ctx context.Context, req model.BlockRequest) *future.Future[struct{}] {
	return done(a.stream.DisableHandlingForStream(ctx, req))
}

func (a *Async) EnableHandlingForStreamAsync(ctx context.Context, req model.BlockRequest) *future.Future[struct{}] {
	return done(a.stream.EnableHandlingForStream(ctx, req))
}

func (a *Async) DisableHandlingForRecordAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.DisableHandlingForRecord(ctx, req))
}

func (a *Async) EnableHandlingForRecordAsync(ctx context.Context, req model.HandlingRequest) *future.Future[struct{}] {
	return done(a.stream.EnableHandlingForRecord(ctx, req))
}

func (a *Async) PruneBeforeDateAsync(ctx context.Context, req model.PruneRequest) *future.Future[model.PruneResult] {
	return resolved(a.stream.PruneBeforeDate(ctx, req))
}

func (a *Async) PruneBeforeIDAsync(ctx context.Context, req model.PruneRequest) *future.Future[model.PruneResult] {
	return resolved(a.stream.PruneBeforeID(ctx, req))
}

func (a *Async) StatsAsync(ctx context.Context) *future.Future[[]model.PartitionStats] {
	return resolved(a.stream.Stats(ctx))
}
