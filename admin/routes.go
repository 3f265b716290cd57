package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes registers all admin API routes using chi router
func RegisterRoutes(mux *http.ServeMux, handlers *AdminHandlers) {
	mux.Handle("/admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
	mux.Handle("/admin/", http.StripPrefix("/admin", handlers.Router()))

	log.Info().Msg("Admin endpoints enabled at /admin/streams/{stream}/*")
}

// Router builds the chi router without the /admin prefix
func (h *AdminHandlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware)

	r.Get("/streams", h.handleListStreams)
	r.Get("/feed", h.handleFeedStatus)

	r.Route("/streams/{stream}", func(r chi.Router) {
		// Stats & health
		r.Get("/stats", h.wrapWithStream(h.handleStats))
		r.Get("/blocked", h.wrapWithStream(h.handleIsBlocked))
		r.Post("/block", h.wrapWithStream(h.handleBlock))
		r.Post("/unblock", h.wrapWithStream(h.handleUnblock))

		// Records
		r.Get("/records", h.wrapWithStream(h.handleListRecords))
		r.Get("/records/latest", h.wrapWithStream(h.handleLatestRecord))
		r.Get("/records/{recordID}", h.wrapWithStream(h.handleRecordByID))
		r.Get("/ids", h.wrapWithStream(h.handleDistinctIDs))

		// Handling
		r.Get("/records/{recordID}/handling/{concern}", h.wrapWithStream(h.handleHandlingHistory))
		r.Post("/records/{recordID}/disable", h.wrapWithStream(h.handleDisableRecord))
		r.Post("/records/{recordID}/enable", h.wrapWithStream(h.handleEnableRecord))
		r.Get("/composite/{concern}", h.wrapWithStream(h.handleCompositeStatus))

		// Management
		r.Post("/prune", h.wrapWithStream(h.handlePrune))
	})

	return r
}

// wrapWithStream resolves the {stream} URL parameter
func (h *AdminHandlers) wrapWithStream(fn func(http.ResponseWriter, *http.Request, stream.ReadWriteStream)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.getStream(chi.URLParam(r, "stream"))
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, err.Error())
			return
		}
		fn(w, r, s)
	}
}
