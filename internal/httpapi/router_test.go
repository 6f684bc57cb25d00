package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/phenotype-mcp/internal/app"
	"github.com/dshills/phenotype-mcp/internal/config"
	"github.com/dshills/phenotype-mcp/internal/embedder"
	"github.com/dshills/phenotype-mcp/internal/storage/storagetest"
)

func testConfig(storePath, indexPath string) *config.Config {
	return &config.Config{
		StorePath: storePath,
		IndexPath: indexPath,
		Embedding: config.EmbeddingConfig{CacheSize: 100, Timeout: time.Second},
		Search:    config.SearchConfig{CacheTTL: time.Minute, CacheSize: 100, AdvisoryThreshold: 0.7},
		Server:    config.ServerConfig{Transport: config.TransportHTTP, Host: "127.0.0.1", Port: 8000},
		Log:       config.LogConfig{Level: "info"},
	}
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	a := app.New(context.Background(), testConfig(storagetest.NewStorePath(t), storagetest.NewLocalIndexPath(t)), nil)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func getJSON(t *testing.T, h http.Handler, target string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestRelationshipRoutes(t *testing.T) {
	h := NewRouter(newTestApp(t), nil)

	tests := []struct {
		name    string
		target  string
		listKey string
		wantLen int
		found   bool
	}{
		{"genes by hpo", "/gene/hpo/HP:0001250", "genes", 2, true},
		{"hpo by gene", "/hpo/gene/6812", "hpo_terms", 2, true},
		{"diseases by gene", "/disease/gene/2260", "diseases", 1, true},
		{"genes by disease", "/gene/disease/OMIM:612164", "genes", 1, true},
		{"diseases by hpo", "/disease/hpo/HP:0001250", "diseases", 2, true},
		{"hpo by disease", "/hpo/disease/OMIM:101600", "hpo_terms", 2, true},
		{"unknown term", "/gene/hpo/HP:9999999", "genes", 0, false},
		{"unknown gene", "/disease/gene/1", "diseases", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := getJSON(t, h, tt.target)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.found, out["found"])
			list, ok := out[tt.listKey].([]interface{})
			require.True(t, ok, "%s should be a JSON array", tt.listKey)
			assert.Len(t, list, tt.wantLen)
		})
	}
}

func TestHPONameRoute(t *testing.T) {
	h := NewRouter(newTestApp(t), nil)

	_, out := getJSON(t, h, "/hpo/HP:0001263")
	assert.Equal(t, "Global developmental delay", out["hpo_name"])

	_, out = getJSON(t, h, "/hpo/HP:0000000")
	assert.Equal(t, "unknown", out["hpo_name"])
	assert.Equal(t, false, out["found"])
}

func TestSearchRoute(t *testing.T) {
	h := NewRouter(newTestApp(t), nil)

	code, out := getJSON(t, h, "/search?q=seizure&k=2")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, float64(2), out["k"])
	assert.Len(t, out["candidates"], 2)

	_, out = getJSON(t, h, "/search?q=seizure")
	assert.Equal(t, float64(5), out["k"])

	code, _ = getJSON(t, h, "/search?q=seizure&k=many")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSearchRouteUnavailable(t *testing.T) {
	t.Setenv(embedder.EnvVoyageAPIKey, "")
	dir := t.TempDir()
	a := app.New(context.Background(), testConfig(storagetest.NewStorePath(t), filepath.Join(dir, "missing.db")), nil)
	t.Cleanup(func() { _ = a.Close() })

	_, out := getJSON(t, NewRouter(a, nil), "/search?q=seizure")
	assert.Equal(t, "unavailable", out["status"])
	assert.Equal(t, "index missing", out["reason"])
}

func TestWorkflowRoute(t *testing.T) {
	h := NewRouter(newTestApp(t), nil)

	_, out := getJSON(t, h, "/workflows/zh")
	assert.Equal(t, "chinese", out["language"])

	_, out = getJSON(t, h, "/workflows/English")
	assert.Equal(t, "english", out["language"])

	code, _ := getJSON(t, h, "/workflows/klingon")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStatusAndMetricsRoutes(t *testing.T) {
	h := NewRouter(newTestApp(t), nil)

	_, out := getJSON(t, h, "/status")
	assert.Equal(t, "healthy", out["status"])

	// Hit a parameterised route so its pattern shows up as a label
	getJSON(t, h, "/gene/hpo/HP:0001250")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "phenotype_mcp_http_requests_total")
	assert.Contains(t, body, `route="/gene/hpo/{hpo_id}"`)
	assert.NotContains(t, body, "HP:0001250")
}

func TestMCPMount(t *testing.T) {
	a := newTestApp(t)
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, MCPPath, strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	NewRouter(a, mcpHandler).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	NewRouter(a, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, MCPPath, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerGracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), NewRouter(newTestApp(t), nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/status")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), `"status"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWriteJSONEncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"score": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out["error"], "failed to encode response")
}
