package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GonzoDMX/artifact-index/internal/store"
)

// HandleResourceGet - GET /api/v1/resources/{key}?form=normalized|source
// Returns the stored JSON of one resource, decompressed.
func (h *Handlers) HandleResourceGet(w http.ResponseWriter, r *http.Request) {
	key, err := strconv.ParseInt(r.PathValue("key"), 10, 64)
	if err != nil || key <= 0 {
		errorResponse(w, http.StatusBadRequest, "Invalid resource key")
		return
	}

	form := r.URL.Query().Get("form")
	if form == "" {
		form = "normalized"
	}
	if form != "normalized" && form != "source" {
		errorResponse(w, http.StatusBadRequest, "Unknown form: "+form)
		return
	}

	source, normalized, err := h.store.LoadContent(key)
	if errors.Is(err, store.ErrNotFound) {
		errorResponse(w, http.StatusNotFound, "Resource not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load content", slog.Int64("key", key), slog.String("error", err.Error()))
		errorResponse(w, http.StatusInternalServerError, "Failed to load resource")
		return
	}

	content := normalized
	if form == "source" {
		content = source
	}
	if !json.Valid(content) {
		errorResponse(w, http.StatusInternalServerError, "Stored content is not valid JSON")
		return
	}
	jsonResponse(w, http.StatusOK, StandardResponse{
		Success: true,
		Data:    ContentResponse{Key: key, Form: form, Content: content},
	})
}
