package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ==========================================
// SEARCH OPERATIONS
// ==========================================

// Both searches take a SearchRequest body and run an FTS MATCH over the store.
// A malformed MATCH expression is the caller's fault, so it maps to 400.

func parseSearchReq(r *http.Request) (SearchRequest, error) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	req.Query = strings.TrimSpace(req.Query)
	req.Limit = limitOrDefault(req.Limit)
	return req, nil
}

// HandleSearchResources - POST /api/v1/search/resources
func (h *Handlers) HandleSearchResources(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchReq(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "Missing 'query'")
		return
	}

	start := time.Now()
	hits, err := h.store.SearchResources(req.Query, req.Limit)
	if err != nil {
		h.logger.Warn("Resource search failed", slog.String("query", req.Query), slog.String("error", err.Error()))
		errorResponse(w, http.StatusBadRequest, "Search failed: "+err.Error())
		return
	}

	results := make([]ResourceResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, ResourceResult{
			Key:     hit.Key,
			Package: hit.Package,
			Type:    hit.Type,
			URL:     hit.URL,
			Title:   hit.Title,
		})
	}
	jsonResponse(w, http.StatusOK, StandardResponse{
		Success: true,
		Data:    SearchResponse[ResourceResult]{Results: results, Total: len(results), Took: time.Since(start).String()},
	})
}

// HandleSearchCodes - POST /api/v1/search/codes
func (h *Handlers) HandleSearchCodes(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchReq(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "Missing 'query'")
		return
	}

	start := time.Now()
	hits, err := h.store.SearchCodes(req.Query, req.Limit)
	if err != nil {
		h.logger.Warn("Code search failed", slog.String("query", req.Query), slog.String("error", err.Error()))
		errorResponse(w, http.StatusBadRequest, "Search failed: "+err.Error())
		return
	}

	results := make([]CodeResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, CodeResult{
			ResourceKey: hit.ResourceKey,
			URL:         hit.URL,
			Code:        hit.Code,
			Display:     hit.Display,
		})
	}
	jsonResponse(w, http.StatusOK, StandardResponse{
		Success: true,
		Data:    SearchResponse[CodeResult]{Results: results, Total: len(results), Took: time.Since(start).String()},
	})
}
