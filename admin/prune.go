package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog/log"
)

// handlePrune removes records and handling entries below a threshold.
// Exactly one of before (RFC 3339) or before_id must be given.
func (h *AdminHandlers) handlePrune(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	beforeStr := r.URL.Query().Get("before")
	beforeIDStr := r.URL.Query().Get("before_id")
	if (beforeStr == "") == (beforeIDStr == "") {
		writeErrorResponse(w, http.StatusBadRequest, "exactly one of before or before_id is required")
		return
	}

	req := model.PruneRequest{Locator: parseLocator(r)}

	var result model.PruneResult
	var err error
	if beforeStr != "" {
		before, parseErr := time.Parse(time.RFC3339Nano, beforeStr)
		if parseErr != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid before parameter")
			return
		}
		req.Before = before.UTC()
		result, err = s.PruneBeforeDate(r.Context(), req)
	} else {
		req.BeforeID, err = strconv.ParseInt(beforeIDStr, 10, 64)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid before_id parameter")
			return
		}
		result, err = s.PruneBeforeID(r.Context(), req)
	}
	if err != nil {
		writeStreamError(w, err)
		return
	}

	log.Info().
		Str("stream", s.Name()).
		Int("records_removed", result.RecordsRemoved).
		Int("handling_entries_removed", result.HandlingEntriesRemoved).
		Msg("Admin prune completed")

	response := map[string]interface{}{
		"records_removed":          result.RecordsRemoved,
		"handling_entries_removed": result.HandlingEntriesRemoved,
	}

	writeJSONResponse(w, response, false, "")
}
