package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog/log"
)

// actionRequest is the optional JSON body of management actions
type actionRequest struct {
	Details string             `json:"details"`
	Tags    []model.NamedValue `json:"tags"`
}

// decodeAction reads an optional actionRequest; an empty body is allowed
func decodeAction(r *http.Request) (actionRequest, error) {
	var req actionRequest
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

// handlingEntryView is the JSON shape of a handling entry
type handlingEntryView struct {
	InternalHandlingEntryID int64              `json:"internal_handling_entry_id"`
	Status                  string             `json:"status"`
	Details                 string             `json:"details,omitempty"`
	Tags                    []model.NamedValue `json:"tags,omitempty"`
	Timestamp               string             `json:"timestamp"`
}

// handleHandlingHistory returns the current status and every entry of one
// (record, concern) pair
func (h *AdminHandlers) handleHandlingHistory(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	recordID, err := parseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	concern := chi.URLParam(r, "concern")
	locator := parseLocator(r)

	status, err := s.GetHandlingStatus(r.Context(), locator, recordID, concern)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	history, err := s.GetHandlingHistory(r.Context(), locator, recordID, concern)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	entries := make([]handlingEntryView, 0, len(history))
	for _, e := range history {
		entries = append(entries, handlingEntryView{
			InternalHandlingEntryID: e.InternalHandlingEntryID,
			Status:                  e.Status.String(),
			Details:                 e.Details,
			Tags:                    e.Tags,
			Timestamp:               formatTimestamp(e.TimestampUTC),
		})
	}

	response := map[string]interface{}{
		"internal_record_id": recordID,
		"concern":            concern,
		"status":             status.String(),
		"history":            entries,
	}

	writeJSONResponse(w, response, false, "")
}

// handleCompositeStatus reduces the latest statuses of the records selected
// by repeated id parameters, or by tag parameters when no id is given
func (h *AdminHandlers) handleCompositeStatus(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	req := model.CompositeStatusRequest{
		Concern: chi.URLParam(r, "concern"),
		Locator: parseLocator(r),
		IDs:     r.URL.Query()["id"],
	}

	var err error
	if req.IDType, err = parseOptionalType(r, "id_type"); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VersionMatchStrategy, err = model.ParseVersionMatchStrategy(r.URL.Query().Get("version")); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tags, err = parseTags(r); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TagMatchStrategy, err = parseTagMatch(r); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var status model.HandlingStatus
	var by string
	switch {
	case len(req.IDs) > 0:
		by = "ids"
		status, err = s.GetCompositeHandlingStatusByIDs(r.Context(), req)
	case len(req.Tags) > 0:
		by = "tags"
		status, err = s.GetCompositeHandlingStatusByTags(r.Context(), req)
	default:
		writeErrorResponse(w, http.StatusBadRequest, "id or tag parameter is required")
		return
	}
	if err != nil {
		writeStreamError(w, err)
		return
	}

	response := map[string]interface{}{
		"concern": req.Concern,
		"by":      by,
		"status":  status.String(),
	}

	writeJSONResponse(w, response, false, "")
}

// handleBlock blocks handling on the given locator, or every locator
func (h *AdminHandlers) handleBlock(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	h.blockAction(w, r, s, "block", s.Block)
}

// handleUnblock cancels a block
func (h *AdminHandlers) handleUnblock(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	h.blockAction(w, r, s, "unblock", s.CancelBlock)
}

func (h *AdminHandlers) blockAction(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream, action string, fn func(ctx context.Context, req model.BlockRequest) error) {
	body, err := decodeAction(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	req := model.BlockRequest{
		Locator: parseLocator(r),
		Details: body.Details,
		Tags:    body.Tags,
	}
	if err := fn(r.Context(), req); err != nil {
		writeStreamError(w, err)
		return
	}

	log.Info().Str("stream", s.Name()).Str("action", action).Str("details", body.Details).Msg("Admin changed blocking gate")

	blocked, err := s.IsBlocked(r.Context(), req.Locator)
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSONResponse(w, map[string]interface{}{"blocked": blocked}, false, "")
}

// handleDisableRecord excludes one record from handling
func (h *AdminHandlers) handleDisableRecord(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	h.recordAction(w, r, s, "disable", s.DisableHandlingForRecord)
}

// handleEnableRecord re-enables handling of one record
func (h *AdminHandlers) handleEnableRecord(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	h.recordAction(w, r, s, "enable", s.EnableHandlingForRecord)
}

func (h *AdminHandlers) recordAction(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream, action string, fn func(ctx context.Context, req model.HandlingRequest) error) {
	recordID, err := parseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := decodeAction(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	req := model.HandlingRequest{
		Locator:          parseLocator(r),
		InternalRecordID: recordID,
		Details:          body.Details,
		Tags:             body.Tags,
	}
	if err := fn(r.Context(), req); err != nil {
		writeStreamError(w, err)
		return
	}

	log.Info().Str("stream", s.Name()).Int64("record_id", recordID).Str("action", action).Msg("Admin changed record handling")

	writeJSONResponse(w, map[string]interface{}{
		"internal_record_id": recordID,
		"action":             action,
	}, false, "")
}
