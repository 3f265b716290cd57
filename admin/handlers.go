package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maxpert/recordstream/model"
	"github.com/maxpert/recordstream/publisher"
	"github.com/maxpert/recordstream/serializer"
	"github.com/maxpert/recordstream/stream"
	"github.com/rs/zerolog/log"
)

// AdminHandlers serves inspection and management endpoints over the
// registered streams
type AdminHandlers struct {
	streams *stream.Registry
	feed    *publisher.Registry
	objects serializer.Factory
}

// NewAdminHandlers creates a new AdminHandlers instance. feed may be nil
// when the change feed is disabled. objects decodes payloads for
// ?decode=true and may be nil.
func NewAdminHandlers(streams *stream.Registry, feed *publisher.Registry, objects serializer.Factory) *AdminHandlers {
	return &AdminHandlers{
		streams: streams,
		feed:    feed,
		objects: objects,
	}
}

// getStream resolves a registered stream by name
func (h *AdminHandlers) getStream(name string) (stream.ReadWriteStream, error) {
	if name == "" {
		return nil, fmt.Errorf("stream name is required")
	}

	s, ok := h.streams.Get(name)
	if !ok {
		return nil, fmt.Errorf("stream '%s' not found", name)
	}
	return s, nil
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}, hasMore bool, lastKey string) {
	response := map[string]interface{}{
		"data": data,
	}

	if hasMore || lastKey != "" {
		response["has_more"] = hasMore
		if lastKey != "" {
			response["last_key"] = lastKey
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// writeStreamError maps stream operation errors to HTTP statuses
func writeStreamError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, model.ErrStreamNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrArgument), errors.Is(err, model.ErrNotSupported):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidStateTransition), errors.Is(err, model.ErrConflict):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	writeErrorResponse(w, status, err.Error())
}

// parseLimit parses limit parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 256, nil // default
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}

	if limit > 1024 {
		return 0, fmt.Errorf("limit cannot exceed 1024")
	}

	return limit, nil
}

// parseFrom parses the exclusive lower record id bound for pagination
func parseFrom(r *http.Request) (*int64, error) {
	fromStr := r.URL.Query().Get("from")
	if fromStr == "" {
		return nil, nil
	}
	from, err := strconv.ParseInt(fromStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid from parameter: %w", err)
	}
	from++
	return &from, nil
}

// parseLocator returns nil when no locator is given
func parseLocator(r *http.Request) model.Locator {
	name := r.URL.Query().Get("locator")
	if name == "" {
		return nil
	}
	return model.MemoryLocator{Name: name}
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid record ID")
	}
	return id, nil
}

func parseOptionalType(r *http.Request, param string) (*model.TypeRepresentation, error) {
	s := r.URL.Query().Get(param)
	if s == "" {
		return nil, nil
	}
	t, err := model.ParseTypeRepresentation(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTags reads repeated tag=name:value parameters
func parseTags(r *http.Request) ([]model.NamedValue, error) {
	raw := r.URL.Query()["tag"]
	if len(raw) == 0 {
		return nil, nil
	}
	tags := make([]model.NamedValue, 0, len(raw))
	for _, t := range raw {
		name, value, ok := strings.Cut(t, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid tag %q, expected name:value", t)
		}
		tags = append(tags, model.NamedValue{Name: name, Value: value})
	}
	return tags, nil
}

// parseTagMatch accepts all (every queried tag present) or any (at least one)
func parseTagMatch(r *http.Request) (model.TagMatchStrategy, error) {
	switch strings.ToLower(r.URL.Query().Get("tag_match")) {
	case "", "all":
		return model.DefaultTagMatchStrategy, nil
	case "any":
		return model.TagMatchStrategy{ScopeOfFindSet: model.TagMatchScopeAny, ScopeOfTarget: model.TagMatchScopeAny}, nil
	default:
		return model.TagMatchStrategy{}, fmt.Errorf("invalid tag_match parameter")
	}
}

func parseOrder(r *http.Request) (model.Order, error) {
	switch strings.ToLower(r.URL.Query().Get("order")) {
	case "", "asc":
		return model.OrderAscending, nil
	case "desc":
		return model.OrderDescending, nil
	default:
		return model.OrderAscending, fmt.Errorf("invalid order parameter")
	}
}

// parseRecordQuery builds a RecordQuery from the common filter parameters
func parseRecordQuery(r *http.Request) (model.RecordQuery, error) {
	q := model.RecordQuery{Locator: parseLocator(r)}

	if id := r.URL.Query().Get("id"); id != "" {
		q.StringSerializedID = &id
	}

	var err error
	if q.IDType, err = parseOptionalType(r, "id_type"); err != nil {
		return q, err
	}
	if q.ObjectType, err = parseOptionalType(r, "object_type"); err != nil {
		return q, err
	}
	if q.VersionMatchStrategy, err = model.ParseVersionMatchStrategy(r.URL.Query().Get("version")); err != nil {
		return q, err
	}
	if q.Tags, err = parseTags(r); err != nil {
		return q, err
	}
	if q.TagMatchStrategy, err = parseTagMatch(r); err != nil {
		return q, err
	}
	if q.Order, err = parseOrder(r); err != nil {
		return q, err
	}
	return q, nil
}

// formatTimestamp converts a time to ISO 8601 string
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
