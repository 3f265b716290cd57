package stream

import (
	"context"
	"time"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/serializer"
)

// PutObjectRequest describes a typed write. The object type comes from the
// serializer's description of obj.
type PutObjectRequest struct {
	Locator                model.Locator
	ID                     *string
	IDType                 model.TypeRepresentation
	Tags                   []model.NamedValue
	ObjectTimestampUTC     *time.Time
	ExistingRecordStrategy model.ExistingRecordStrategy
	VersionMatchStrategy   model.VersionMatchStrategy
	RecordRetentionCount   *int
}

// PutObject serializes obj with ser and appends it.
func PutObject(ctx context.Context, s ReadWriteStream, ser serializer.Serializer, obj any, req PutObjectRequest) (model.PutResult, error) {
	payload, err := ser.Serialize(obj)
	if err != nil {
		return model.PutResult{}, err
	}

	return s.Put(ctx, model.PutRequest{
		Locator: req.Locator,
		Metadata: model.RecordMetadata{
			StringSerializedID: req.ID,
			TypeOfID:           model.NewTypeRepresentationWithAndWithoutVersion(req.IDType),
			TypeOfObject:       model.NewTypeRepresentationWithAndWithoutVersion(payload.Type),
			Tags:               req.Tags,
			ObjectTimestampUTC: req.ObjectTimestampUTC,
		},
		Payload:                payload,
		ExistingRecordStrategy: req.ExistingRecordStrategy,
		VersionMatchStrategy:   req.VersionMatchStrategy,
		RecordRetentionCount:   req.RecordRetentionCount,
	})
}

// GetLatestObject decodes the latest record matching q into out using the
// serializer the record was written with. It reports false when nothing
// matches.
func GetLatestObject(ctx context.Context, s ReadWriteStream, factory serializer.Factory, q model.RecordQuery, out any) (*model.Record, bool, error) {
	rec, err := s.GetLatestRecord(ctx, q)
	if err != nil || rec == nil {
		return nil, false, err
	}
	ser, err := factory.BuildSerializer(rec.Payload.Serializer)
	if err != nil {
		return nil, false, err
	}
	if err := ser.Deserialize(rec.Payload, out); err != nil {
		return nil, false, err
	}
	return rec, true, nil
}
