// Package httpapi serves the REST mirror of the MCP tools, the Prometheus
// metrics endpoint and, optionally, the streamable MCP transport.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/phenotype-mcp/internal/app"
	"github.com/dshills/phenotype-mcp/internal/matcher"
	"github.com/dshills/phenotype-mcp/internal/workflow"
)

const (
	// RequestTimeout bounds every REST request. The MCP endpoint is exempt
	// since it holds long-lived streams.
	RequestTimeout = 60 * time.Second

	// MCPPath is where the MCP transport is mounted when one is supplied
	MCPPath = "/mcp"
)

type routes struct {
	app *app.App
}

// NewRouter builds the HTTP handler. mcpHandler may be nil.
func NewRouter(a *app.App, mcpHandler http.Handler) http.Handler {
	rt := &routes{app: a}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		observe(a),
	)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))

		r.Get("/gene/hpo/{hpo_id}", rt.genesByHPO)
		r.Get("/hpo/gene/{gene_id}", rt.hpoByGene)
		r.Get("/disease/gene/{gene_id}", rt.diseasesByGene)
		r.Get("/gene/disease/{disease_id}", rt.genesByDisease)
		r.Get("/disease/hpo/{hpo_id}", rt.diseasesByHPO)
		r.Get("/hpo/disease/{disease_id}", rt.hpoByDisease)
		r.Get("/hpo/{hpo_id}", rt.hpoName)
		r.Get("/search", rt.search)
		r.Get("/workflows/{language}", rt.workflow)
		r.Get("/status", rt.status)
		r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	})

	if mcpHandler != nil {
		r.Handle(MCPPath, mcpHandler)
	}
	return r
}

func (rt *routes) genesByHPO(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.GenesByTerm(r.Context(), chi.URLParam(r, "hpo_id")))
}

func (rt *routes) hpoByGene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.TermsByGene(r.Context(), chi.URLParam(r, "gene_id")))
}

func (rt *routes) diseasesByGene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.DiseasesByGene(r.Context(), chi.URLParam(r, "gene_id")))
}

func (rt *routes) genesByDisease(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.GenesByDisease(r.Context(), chi.URLParam(r, "disease_id")))
}

func (rt *routes) diseasesByHPO(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.DiseasesByTerm(r.Context(), chi.URLParam(r, "hpo_id")))
}

func (rt *routes) hpoByDisease(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Relations.TermsByDisease(r.Context(), chi.URLParam(r, "disease_id")))
}

func (rt *routes) hpoName(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "hpo_id")
	res, err := rt.app.Resolver.Resolve(r.Context(), id)
	if err != nil {
		rt.app.Log.Warn("term name lookup failed", "hpo_id", id, "error", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"hpo_id":   res.HPOID,
			"hpo_name": res.HPOName,
			"found":    false,
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// search runs the semantic matcher. k defaults to 5; an unparsable k is a
// client error, anything out of range is clamped.
func (rt *routes) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := matcher.DefaultK
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid k: must be an integer", http.StatusBadRequest)
			return
		}
		k = n
	}

	res := rt.app.Matcher.Match(r.Context(), q.Get("q"), k)
	rt.app.Metrics.ObserveSearch(res.Status, res.Reason, res.CacheHit)
	writeJSON(w, http.StatusOK, res)
}

func (rt *routes) workflow(w http.ResponseWriter, r *http.Request) {
	wf, err := workflow.ByLanguage(chi.URLParam(r, "language"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (rt *routes) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.app.Health.Report(r.Context()))
}

// writeJSON encodes v before writing the status so that an encoding failure
// can still be reported as a 500
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": "failed to encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// observe logs each request and records it under its route pattern so that
// identifiers do not become metric labels
func observe(a *app.App) func(http.Handler) http.Handler {
	log := a.Log.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			a.Metrics.InflightHTTP(1)
			defer a.Metrics.InflightHTTP(-1)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			a.Metrics.ObserveHTTP(route, r.Method, status, elapsed)
			log.Debug("request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
