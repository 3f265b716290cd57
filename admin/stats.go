package admin

import (
	"net/http"

	"github.com/maxpert/recordstream/stream"
)

// handleListStreams returns every registered stream with its totals
func (h *AdminHandlers) handleListStreams(w http.ResponseWriter, r *http.Request) {
	names := h.streams.Names()
	result := make([]map[string]interface{}, 0, len(names))

	for _, name := range names {
		entry := map[string]interface{}{
			"name": name,
		}
		if provider := h.streams.GetStream(name); provider != nil {
			records, entries, blocked, err := provider.Totals()
			if err != nil {
				entry["error"] = err.Error()
			} else {
				entry["records"] = records
				entry["handling_entries"] = entries
				entry["blocked_partitions"] = blocked
			}
		}
		result = append(result, entry)
	}

	writeJSONResponse(w, result, false, "")
}

// handleStats returns per-partition statistics
func (h *AdminHandlers) handleStats(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		writeStreamError(w, err)
		return
	}

	response := map[string]interface{}{
		"stream":     s.Name(),
		"partitions": stats,
	}

	writeJSONResponse(w, response, false, "")
}

// handleIsBlocked reports whether handling is blocked
func (h *AdminHandlers) handleIsBlocked(w http.ResponseWriter, r *http.Request, s stream.ReadWriteStream) {
	blocked, err := s.IsBlocked(r.Context(), parseLocator(r))
	if err != nil {
		writeStreamError(w, err)
		return
	}

	writeJSONResponse(w, map[string]interface{}{"blocked": blocked}, false, "")
}
