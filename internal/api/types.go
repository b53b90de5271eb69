package api

import "encoding/json"

const (
	defaultLimit = 20
	maxLimit     = 500
)

// ==========================================
// 1. STANDARD ENVELOPE
// ==========================================

// StandardResponse wraps all API responses.
// Clients check "success" first. If false, display "error".
type StandardResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ==========================================
// 2. GENERAL SERVICE
// ==========================================

type StatusResponse struct {
	Status        string         `json:"status"` // compatibility of the served store
	Issues        []string       `json:"issues,omitempty"`
	Uptime        string         `json:"uptime"`
	Store         string         `json:"store"`
	RunID         string         `json:"run_id"`
	BuiltAt       string         `json:"built_at"`
	BuiltBy       string         `json:"built_by"` // app version stamped by the run
	SchemaVersion string         `json:"schema_version"`
	Version       string         `json:"version"`
	Counts        map[string]int `json:"counts"`
}

// ==========================================
// 3. SEARCH
// ==========================================

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"` // Default: 20
}

type ResourceResult struct {
	Key     int64  `json:"key"`
	Package string `json:"package"`
	Type    string `json:"type"`
	URL     string `json:"url"`
	Title   string `json:"title"`
}

type CodeResult struct {
	ResourceKey int64  `json:"resource_key"`
	URL         string `json:"url"`
	Code        string `json:"code"`
	Display     string `json:"display,omitempty"`
}

type SearchResponse[T any] struct {
	Results []T    `json:"results"`
	Total   int    `json:"total_hits"`
	Took    string `json:"took"`
}

// ==========================================
// 4. CONTENT
// ==========================================

// ContentResponse carries one stored form of a resource.
type ContentResponse struct {
	Key     int64           `json:"key"`
	Form    string          `json:"form"` // "normalized" or "source"
	Content json.RawMessage `json:"content"`
}
