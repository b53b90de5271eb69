package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GonzoDMX/artifact-index/internal/config"
	"github.com/GonzoDMX/artifact-index/internal/store"
)

// envelope mirrors StandardResponse with a typed payload.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func buildStore(t *testing.T, finished bool) (path string, key int64) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "artifacts.db")
	m, err := store.Create(path, "run-api", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	pkg, err := m.InsertPackage(store.PackageRow{
		PID:       "acme.core#1.0.0",
		ID:        "acme.core",
		Canonical: "http://acme.org/fhir",
		Version:   "1.0.0",
	})
	require.NoError(t, err)

	key, err = m.InsertResource(store.ResourceRow{
		PackageKey:     pkg,
		ResourceType:   "CodeSystem",
		NormalizedType: "CodeSystem",
		ID:             "colors",
		URL:            "http://acme.org/fhir/CodeSystem/colors",
		Name:           "Colors",
		Title:          "Paint Colors",
		Source:         []byte(`{"resourceType":"CodeSystem","id":"colors","text":{"div":"x"}}`),
		Normalized:     []byte(`{"id":"colors","resourceType":"CodeSystem"}`),
		Narrative:      "A palette of vermilion shades",
		Codes:          []store.CodeRow{{Code: "red", Display: "Vermilion red"}},
	})
	require.NoError(t, err)

	if finished {
		require.NoError(t, m.PutMetadataInt(config.MetaTotalPackages, 1))
	}
	require.NoError(t, m.Close())
	return path, key
}

func newServer(t *testing.T, finished bool) (*httptest.Server, int64) {
	t.Helper()
	path, key := buildStore(t, finished)
	m, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewHandlers(m, logger).Register(mux)
	srv := httptest.NewServer(MiddlewareChain(mux, logger))
	t.Cleanup(srv.Close)
	return srv, key
}

func decode[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestHealthAndCORS(t *testing.T) {
	srv, _ := newServer(t, true)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/search/resources", nil)
	require.NoError(t, err)
	pre, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	pre.Body.Close()
	assert.Equal(t, http.StatusOK, pre.StatusCode)
}

func TestStatus(t *testing.T) {
	t.Run("finished store", func(t *testing.T) {
		srv, _ := newServer(t, true)
		resp, err := http.Get(srv.URL + "/api/v1/system/status")
		require.NoError(t, err)
		env := decode[StatusResponse](t, resp)

		require.True(t, env.Success)
		assert.Equal(t, "compatible", env.Data.Status)
		assert.Equal(t, "run-api", env.Data.RunID)
		assert.Equal(t, config.CurrentDefaults.AppVersion, env.Data.BuiltBy)
		assert.Equal(t, 1, env.Data.Counts["packages"])
		assert.Equal(t, 1, env.Data.Counts["resources"])
	})

	t.Run("interrupted store", func(t *testing.T) {
		srv, _ := newServer(t, false)
		resp, err := http.Get(srv.URL + "/api/v1/system/status")
		require.NoError(t, err)
		env := decode[StatusResponse](t, resp)

		require.True(t, env.Success)
		assert.Equal(t, "incompatible", env.Data.Status)
		assert.NotEmpty(t, env.Data.Issues)
	})
}

func TestSearchResources(t *testing.T) {
	srv, key := newServer(t, true)

	resp := post(t, srv.URL+"/api/v1/search/resources", SearchRequest{Query: "vermilion"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	env := decode[SearchResponse[ResourceResult]](t, resp)

	require.True(t, env.Success)
	require.Len(t, env.Data.Results, 1)
	hit := env.Data.Results[0]
	assert.Equal(t, key, hit.Key)
	assert.Equal(t, "acme.core#1.0.0", hit.Package)
	assert.Equal(t, "CodeSystem", hit.Type)
	assert.Equal(t, "Paint Colors", hit.Title)
	assert.Equal(t, 1, env.Data.Total)
}

func TestSearchCodes(t *testing.T) {
	srv, key := newServer(t, true)

	resp := post(t, srv.URL+"/api/v1/search/codes", SearchRequest{Query: "vermilion", Limit: 5})
	env := decode[SearchResponse[CodeResult]](t, resp)

	require.True(t, env.Success)
	require.Len(t, env.Data.Results, 1)
	assert.Equal(t, key, env.Data.Results[0].ResourceKey)
	assert.Equal(t, "red", env.Data.Results[0].Code)
}

func TestSearchRejectsBadRequests(t *testing.T) {
	srv, _ := newServer(t, true)

	resp, err := http.Post(srv.URL+"/api/v1/search/resources", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", decode[any](t, resp).Error)

	resp = post(t, srv.URL+"/api/v1/search/codes", SearchRequest{Query: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, decode[any](t, resp).Success)

	resp, err = http.Get(srv.URL + "/api/v1/search/resources")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestResourceGet(t *testing.T) {
	srv, key := newServer(t, true)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/resources/%d", srv.URL, key))
	require.NoError(t, err)
	env := decode[ContentResponse](t, resp)
	require.True(t, env.Success)
	assert.Equal(t, "normalized", env.Data.Form)
	assert.JSONEq(t, `{"id":"colors","resourceType":"CodeSystem"}`, string(env.Data.Content))

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/resources/%d?form=source", srv.URL, key))
	require.NoError(t, err)
	env = decode[ContentResponse](t, resp)
	assert.JSONEq(t, `{"resourceType":"CodeSystem","id":"colors","text":{"div":"x"}}`, string(env.Data.Content))

	for path, status := range map[string]int{
		"/api/v1/resources/999":                           http.StatusNotFound,
		"/api/v1/resources/abc":                           http.StatusBadRequest,
		fmt.Sprintf("/api/v1/resources/%d?form=xml", key): http.StatusBadRequest,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode, path)
	}
}

func TestLimitOrDefault(t *testing.T) {
	assert.Equal(t, defaultLimit, limitOrDefault(0))
	assert.Equal(t, defaultLimit, limitOrDefault(-3))
	assert.Equal(t, 7, limitOrDefault(7))
	assert.Equal(t, maxLimit, limitOrDefault(maxLimit+1))
}
