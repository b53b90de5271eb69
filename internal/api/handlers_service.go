package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GonzoDMX/artifact-index/internal/config"
	"github.com/GonzoDMX/artifact-index/internal/store"
)

// Store is the read side of a built store that the handlers query.
type Store interface {
	Path() string
	ReadState() (config.StoreState, error)
	Count(table string) (int, error)
	SearchResources(query string, limit int) ([]store.ResourceHit, error)
	SearchCodes(query string, limit int) ([]store.CodeHit, error)
	LoadContent(key int64) (source, normalized []byte, err error)
}

// Handlers serves one store over HTTP.
type Handlers struct {
	store   Store
	logger  *slog.Logger
	started time.Time
}

func NewHandlers(s Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: s, logger: logger, started: time.Now()}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /api/v1/system/status", h.HandleStatus)

	mux.HandleFunc("POST /api/v1/search/resources", h.HandleSearchResources)
	mux.HandleFunc("POST /api/v1/search/codes", h.HandleSearchCodes)

	mux.HandleFunc("GET /api/v1/resources/{key}", h.HandleResourceGet)
}

// ==========================================
// SERVICE OPERATIONS
// ==========================================

// HandleHealth - GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleStatus - GET /api/v1/system/status
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := h.store.ReadState()
	if err != nil {
		h.logger.Error("Failed to read store state", slog.String("error", err.Error()))
		errorResponse(w, http.StatusInternalServerError, "Failed to read store state")
		return
	}
	status, issues := config.CheckCompatibility(state)

	counts := make(map[string]int)
	for _, table := range []string{"Packages", "Resources", "Categories", "Realms", "Authorities"} {
		n, err := h.store.Count(table)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Failed to count "+table)
			return
		}
		counts[strings.ToLower(table)] = n
	}

	jsonResponse(w, http.StatusOK, StandardResponse{
		Success: true,
		Data: StatusResponse{
			Status:        string(status),
			Issues:        issues,
			Uptime:        time.Since(h.started).Round(time.Second).String(),
			Store:         h.store.Path(),
			RunID:         state.RunID,
			BuiltAt:       state.Date,
			BuiltBy:       state.AppVersion,
			SchemaVersion: state.SchemaVersion,
			Version:       config.CurrentDefaults.AppVersion,
			Counts:        counts,
		},
	})
}
