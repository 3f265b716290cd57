package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/stream"
)

// recordView is the JSON shape of a record. Binary payloads are base64
// encoded by encoding/json.
type recordView struct {
	InternalRecordID   int64              `json:"internal_record_id"`
	StringSerializedID *string            `json:"id,omitempty"`
	IDType             string             `json:"id_type,omitempty"`
	ObjectType         string             `json:"object_type,omitempty"`
	Tags               []model.NamedValue `json:"tags,omitempty"`
	Timestamp          string             `json:"timestamp"`
	ObjectTimestamp    string             `json:"object_timestamp,omitempty"`
	Serializer         string             `json:"serializer"`
	Format             string             `json:"format"`
	Text               string             `json:"text,omitempty"`
	Binary             []byte             `json:"binary,omitempty"`
	Object             interface{}        `json:"object,omitempty"`
}

func newRecordView(rec model.Record) recordView {
	v := recordView{
		InternalRecordID:   rec.InternalRecordID,
		StringSerializedID: rec.Metadata.StringSerializedID,
		Tags:               rec.Metadata.Tags,
		Timestamp:          formatTimestamp(rec.Metadata.TimestampUTC),
		Serializer:         string(rec.Payload.Serializer.Kind),
		Format:             rec.Payload.Format.String(),
		Text:               rec.Payload.Text,
		Binary:             rec.Payload.Binary,
	}
	if !rec.Metadata.TypeOfID.IsZero() {
		v.IDType = rec.Metadata.TypeOfID.WithVersion.String()
	}
	if !rec.Metadata.TypeOfObject.IsZero() {
		v.ObjectType = rec.Metadata.TypeOfObject.WithVersion.String()
	}
	if rec.Metadata.ObjectTimestampUTC != nil {
		v.ObjectTimestamp = formatTimestamp(*rec.Metadata.ObjectTimestampUTC)
	}
	return v
}

// view renders a record, decoding its payload when the request asks for it
func (h *AdminHandlers) view(r *http.Request, rec model.Record) (recordView, error) {
	v := newRecordView(rec)
	if r.URL.Query().Get("decode") != "true" {
		return v, nil
	}
	if h.objects == nil {
		return v, fmt.Errorf("payload decoding is not available")
	}

	ser, err := h.objects.BuildSerializer(rec.Payload.Serializer)
	if err != nil {
		return v, err
	}
	var obj interface{}
	if err := ser.Deserialize(rec.Payload, &obj); err != nil {
		return v, fmt.Errorf("failed to decode record %d: %w", rec.InternalRecordID, err)
	}
	v.Object = obj
	v.Text = ""
	v.Binary = nil
	return v, nil
}

// handleListRecords returns matching records a page at a time. Pages are
// addressed by the last internal record id seen (from), so paging requires
// a locator or a single-locator stream.
func (h *AdminHandlers) handleListRecords(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := parseRecordQuery(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	q.Order = model.OrderAscending
	if q.MinInternalRecordID, err = parseFrom(r); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	q.Limit = limit + 1

	records, err := s.GetAllRecords(r.Context(), q)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	result := make([]recordView, 0, len(records))
	for _, rec := range records {
		v, err := h.view(r, rec)
		if err != nil {
			writeStreamError(w, err)
			return
		}
		result = append(result, v)
	}

	lastKey := ""
	if hasMore {
		lastKey = strconv.FormatInt(records[len(records)-1].InternalRecordID, 10)
	}

	writeJSONResponse(w, result, hasMore, lastKey)
}

// handleLatestRecord returns the latest record matching the query
func (h *AdminHandlers) handleLatestRecord(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	q, err := parseRecordQuery(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.GetLatestRecord(r.Context(), q)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	if rec == nil {
		writeErrorResponse(w, http.StatusNotFound, "record not found")
		return
	}

	v, err := h.view(r, *rec)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSONResponse(w, v, false, "")
}

// handleRecordByID returns one record by internal id
func (h *AdminHandlers) handleRecordByID(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	recordID, err := parseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.GetRecordByInternalID(r.Context(), parseLocator(r), recordID)
	if err != nil {
		writeStreamError(w, err)
		return
	}
	if rec == nil {
		writeErrorResponse(w, http.StatusNotFound, "record not found")
		return
	}

	v, err := h.view(r, *rec)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSONResponse(w, v, false, "")
}

// handleDistinctIDs returns the distinct identifiers of matching records
func (h *AdminHandlers) handleDistinctIDs(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	q, err := parseRecordQuery(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := s.GetDistinctStringSerializedIDs(r.Context(), q)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	result := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		result = append(result, map[string]interface{}{
			"id":      id.ID,
			"id_type": id.IDType.WithVersion.String(),
		})
	}

	writeJSONResponse(w, result, false, "")
}
