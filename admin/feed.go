package admin

import "net/http"

// handleFeedStatus reports the publish log position and each sink's cursor
func (h *AdminHandlers) handleFeedStatus(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeJSONResponse(w, map[string]interface{}{"enabled": false}, false, "")
		return
	}

	lastSeq := h.feed.Log().LastSeq()
	workers := h.feed.Workers()
	sinks := make([]map[string]interface{}, 0, len(workers))
	for _, worker := range workers {
		cursor := worker.Cursor()
		sinks = append(sinks, map[string]interface{}{
			"name":   worker.Name(),
			"cursor": cursor,
			"lag":    lastSeq - min(cursor, lastSeq),
		})
	}

	response := map[string]interface{}{
		"enabled":  true,
		"last_seq": lastSeq,
		"sinks":    sinks,
	}

	writeJSONResponse(w, response, false, "")
}
