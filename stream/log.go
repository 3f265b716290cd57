package stream

import (
	"github.com/maxpert/recordstream/handling"
	"github.com/maxpert/recordstream/model"
	"github.com/rs/zerolog"
)

// LogObserver writes stream changes to a zerolog logger. Gate changes and
// prunes are logged at info, everything else at debug.
type LogObserver struct {
	logger zerolog.Logger
}

var _ Observer = (*LogObserver)(nil)

func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) RecordWritten(stream, locator string, rec model.Record) {
	ev := o.logger.Debug().
		Str("stream", stream).
		Str("locator", locator).
		Int64("record_id", rec.InternalRecordID)
	if rec.Metadata.StringSerializedID != nil {
		ev = ev.Str("id", *rec.Metadata.StringSerializedID)
	}
	ev.Msg("Record written")
}

func (o *LogObserver) HandlingRecorded(stream, locator string, entry model.HandlingEntry) {
	if entry.IsGateEntry() {
		o.logger.Info().
			Str("stream", stream).
			Str("locator", locator).
			Bool("blocked", entry.Status == model.HandlingStatusBlocked).
			Str("details", entry.Details).
			Msg("Handling gate changed")
		return
	}

	msg := "Handling recorded"
	if handling.IsTerminal(entry.Status) {
		msg = "Handling finished"
	}
	o.logger.Debug().
		Str("stream", stream).
		Str("locator", locator).
		Str("concern", entry.Concern).
		Int64("record_id", entry.InternalRecordID).
		Int64("entry_id", entry.InternalHandlingEntryID).
		Str("status", entry.Status.String()).
		Msg(msg)
}

func (o *LogObserver) Pruned(stream, locator string, result model.PruneResult) {
	if result.RecordsRemoved == 0 && result.HandlingEntriesRemoved == 0 {
		return
	}
	o.logger.Info().
		Str("stream", stream).
		Str("locator", locator).
		Int("records", result.RecordsRemoved).
		Int("handling_entries", result.HandlingEntriesRemoved).
		Msg("Partition pruned")
}
