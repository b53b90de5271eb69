package api

import (
	"encoding/json"
	"net/http"
)

// jsonResponse sends a standard JSON response
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse sends a standard Error response
func errorResponse(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, StandardResponse{
		Success: false,
		Error:   msg,
	})
}

// limitOrDefault clamps a requested hit count to [1, maxLimit].
func limitOrDefault(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}
