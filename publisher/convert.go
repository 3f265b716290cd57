package publisher

import (
	"fmt"
	"time"

	"github.com/maxpert/recordstream/model"
)

// EventKey builds the sink key for a record of a stream partition
func EventKey(stream, locator string, recordID int64) string {
	return fmt.Sprintf("%s/%s/%d", stream, locator, recordID)
}

// RecordEvent converts a written record to a feed event
func RecordEvent(instanceID uint64, stream, locator string, rec model.Record) FeedEvent {
	return FeedEvent{
		InstanceID: instanceID,
		Stream:     stream,
		Locator:    locator,
		Kind:       KindRecordWritten,
		TimeMS:     rec.Metadata.TimestampUTC.UnixMilli(),
		Record:     &rec,
	}
}

// HandlingEvent converts a handling entry to a feed event
func HandlingEvent(instanceID uint64, stream, locator string, entry model.HandlingEntry) FeedEvent {
	return FeedEvent{
		InstanceID: instanceID,
		Stream:     stream,
		Locator:    locator,
		Kind:       KindHandlingRecorded,
		Concern:    entry.Concern,
		TimeMS:     entry.TimestampUTC.UnixMilli(),
		Entry:      &entry,
	}
}

// PruneEvent converts a prune result to a feed event stamped at now
func PruneEvent(instanceID uint64, stream, locator string, result model.PruneResult, now time.Time) FeedEvent {
	return FeedEvent{
		InstanceID: instanceID,
		Stream:     stream,
		Locator:    locator,
		Kind:       KindPruned,
		TimeMS:     now.UnixMilli(),
		Prune:      &result,
	}
}
