package model

import (
	"bytes"
	"strings"
	"time"
)

// Reserved concern names and the sentinel record id used by gate entries.
const (
	BlockingConcern       = "RecordStream.Blocking"
	RecordDisabledConcern = "RecordStream.RecordDisabled"
	BlockingRecordID      = int64(-1)
)

// ValidateConcern rejects empty and reserved concern names.
func ValidateConcern(concern string) error {
	if strings.TrimSpace(concern) == "" {
		return NewArgumentError("concern", "must not be empty")
	}
	if IsReservedConcern(concern) {
		return NewArgumentError("concern", "%q is reserved", concern)
	}
	return nil
}

// IsReservedConcern reports whether concern is used internally.
func IsReservedConcern(concern string) bool {
	return concern == BlockingConcern || concern == RecordDisabledConcern
}

// SerializationKind names a serializer implementation.
type SerializationKind string

const (
	SerializationKindMsgpack SerializationKind = "msgpack"
	SerializationKindJSON    SerializationKind = "json"
)

// CompressionKind names a payload compressor.
type CompressionKind string

const (
	CompressionNone CompressionKind = ""
	CompressionZstd CompressionKind = "zstd"
)

// SerializationFormat says which payload field carries the bytes.
type SerializationFormat uint8

const (
	SerializationFormatBinary SerializationFormat = iota
	SerializationFormatString
)

func (f SerializationFormat) String() string {
	switch f {
	case SerializationFormatBinary:
		return "Binary"
	case SerializationFormatString:
		return "String"
	default:
		return "Unknown"
	}
}

// SerializerRepresentation describes how a payload was produced.
type SerializerRepresentation struct {
	Kind        SerializationKind `msgpack:"kind" json:"kind"`
	Compression CompressionKind   `msgpack:"compression,omitempty" json:"compression,omitempty"`
}

// Payload is the opaque serialized object stored with a record.
type Payload struct {
	Type       TypeRepresentation       `msgpack:"type" json:"type"`
	Serializer SerializerRepresentation `msgpack:"serializer" json:"serializer"`
	Format     SerializationFormat      `msgpack:"format" json:"format"`
	Binary     []byte                   `msgpack:"bin,omitempty" json:"binary,omitempty"`
	Text       string                   `msgpack:"text,omitempty" json:"text,omitempty"`
}

// Bytes returns the serialized content regardless of format.
func (p Payload) Bytes() []byte {
	if p.Format == SerializationFormatString {
		return []byte(p.Text)
	}
	return p.Binary
}

// ContentEqual compares format and serialized content.
func (p Payload) ContentEqual(o Payload) bool {
	if p.Format != o.Format {
		return false
	}
	if p.Format == SerializationFormatString {
		return p.Text == o.Text
	}
	return bytes.Equal(p.Binary, o.Binary)
}

// RecordMetadata is the filterable part of a record.
type RecordMetadata struct {
	StringSerializedID *string                                 `msgpack:"id,omitempty" json:"stringSerializedId,omitempty"`
	TypeOfID           TypeRepresentationWithAndWithoutVersion `msgpack:"idType" json:"typeOfId"`
	TypeOfObject       TypeRepresentationWithAndWithoutVersion `msgpack:"objectType" json:"typeOfObject"`
	Tags               []NamedValue                            `msgpack:"tags,omitempty" json:"tags,omitempty"`
	TimestampUTC       time.Time                               `msgpack:"ts" json:"timestampUtc"`
	ObjectTimestampUTC *time.Time                              `msgpack:"objectTs,omitempty" json:"objectTimestampUtc,omitempty"`
}

// Record is one immutable stream entry.
type Record struct {
	InternalRecordID int64          `msgpack:"rid" json:"internalRecordId"`
	Metadata         RecordMetadata `msgpack:"meta" json:"metadata"`
	Payload          Payload        `msgpack:"payload" json:"payload"`
}

// StringSerializedIdentifier is a distinct identity as returned by
// GetDistinctStringSerializedIDs.
type StringSerializedIdentifier struct {
	ID     string                                  `json:"id"`
	IDType TypeRepresentationWithAndWithoutVersion `json:"idType"`
}

// HandlingEntry is one immutable status transition of a (record, concern)
// pair.
type HandlingEntry struct {
	InternalHandlingEntryID int64                                   `msgpack:"hid" json:"internalHandlingEntryId"`
	InternalRecordID        int64                                   `msgpack:"rid" json:"internalRecordId"`
	Concern                 string                                  `msgpack:"concern" json:"concern"`
	Status                  HandlingStatus                          `msgpack:"status" json:"status"`
	StringSerializedID      *string                                 `msgpack:"id,omitempty" json:"stringSerializedId,omitempty"`
	TypeOfID                TypeRepresentationWithAndWithoutVersion `msgpack:"idType" json:"typeOfId"`
	TypeOfObject            TypeRepresentationWithAndWithoutVersion `msgpack:"objectType" json:"typeOfObject"`
	Tags                    []NamedValue                            `msgpack:"tags,omitempty" json:"tags,omitempty"`
	Details                 string                                  `msgpack:"details,omitempty" json:"details,omitempty"`
	TimestampUTC            time.Time                               `msgpack:"ts" json:"timestampUtc"`
}

// Clone returns a copy that shares no memory with e.
func (e HandlingEntry) Clone() HandlingEntry {
	e.StringSerializedID = cloneString(e.StringSerializedID)
	e.Tags = CloneTags(e.Tags)
	return e
}

// Clone returns a copy that shares no memory with r.
func (r Record) Clone() Record {
	r.Metadata.StringSerializedID = cloneString(r.Metadata.StringSerializedID)
	r.Metadata.Tags = CloneTags(r.Metadata.Tags)
	if r.Metadata.ObjectTimestampUTC != nil {
		ts := *r.Metadata.ObjectTimestampUTC
		r.Metadata.ObjectTimestampUTC = &ts
	}
	if r.Payload.Binary != nil {
		r.Payload.Binary = append([]byte(nil), r.Payload.Binary...)
	}
	return r
}

// CloneTags copies tags; nil stays nil.
func CloneTags(tags []NamedValue) []NamedValue {
	if tags == nil {
		return nil
	}
	return append([]NamedValue(nil), tags...)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// IsGateEntry reports whether the entry belongs to the blocking gate.
func (e HandlingEntry) IsGateEntry() bool {
	return e.InternalRecordID == BlockingRecordID
}
