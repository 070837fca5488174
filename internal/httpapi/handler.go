// Package httpapi implements the HTTP surface of the aggregator.
//
// Routes (prefix defaults to /api):
//
//	GET    /                         → service banner
//	GET    /health                   → process liveness
//	GET    {prefix}/jobs             → filtered, paginated listing
//	GET    {prefix}/jobs/stats       → aggregate counts + cycle state
//	GET    {prefix}/jobs/health      → store health + cycle timing
//	POST   {prefix}/jobs/{id}/apply  → mark applied
//	DELETE {prefix}/jobs/{id}/apply  → unmark applied
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"jobsync/internal/query"
	"jobsync/internal/store"
)

// Handler holds shared dependencies.
type Handler struct {
	svc     *query.Service
	prefix  string
	version string
}

// NewHandler returns a configured Handler. prefix is either "" or starts
// with "/" and has no trailing slash.
func NewHandler(svc *query.Service, prefix, version string) *Handler {
	return &Handler{svc: svc, prefix: prefix, version: version}
}

// RegisterRoutes mounts all routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(h.prefix+"/jobs", h.handleJobs)
	mux.HandleFunc(h.prefix+"/jobs/", h.handleJobAction)
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/", h.handleRoot)
}

// Routes returns mux wrapped with permissive CORS, ready to serve.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return withCORS(mux)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}
	jsonOK(w, map[string]string{"message": "Job Aggregator API", "version": h.version})
}

func (h *Handler) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{"status": "ok", "service": "jobsync", "version": h.version})
}

// handleJobs handles GET /jobs
func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listJobs(w, r)
}

// handleJobAction handles /jobs/stats, /jobs/health and /jobs/{id}/apply.
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, h.prefix+"/jobs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "stats":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stats(w, r)
	case len(parts) == 1 && parts[0] == "health":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.health(w, r)
	case len(parts) == 2 && parts[1] == "apply" && parts[0] != "":
		switch r.Method {
		case http.MethodPost:
			h.apply(w, r, parts[0])
		case http.MethodDelete:
			h.unapply(w, r, parts[0])
		default:
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		jsonError(w, "not found", http.StatusNotFound)
	}
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context(), parseListParams(r))
	if err != nil {
		h.serviceError(w, "GET /jobs", err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Stats(r.Context())
	if err != nil {
		h.serviceError(w, "GET /jobs/stats", err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Health(r.Context())
	if err != nil {
		h.serviceError(w, "GET /jobs/health", err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.Apply(r.Context(), id); err != nil {
		h.serviceError(w, "POST /jobs/{id}/apply", err)
		return
	}
	jsonOK(w, map[string]any{"success": true, "message": "Marked as applied"})
}

func (h *Handler) unapply(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.Unapply(r.Context(), id); err != nil {
		h.serviceError(w, "DELETE /jobs/{id}/apply", err)
		return
	}
	jsonOK(w, map[string]any{"success": true, "message": "Unmarked as applied"})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// serviceError maps service errors onto status codes.
func (h *Handler) serviceError(w http.ResponseWriter, route string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "Job not found", http.StatusNotFound)
	case query.IsValidation(err):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrUnavailable):
		log.Printf("[api] %s store unavailable: %v", route, err)
		jsonError(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		log.Printf("[api] %s error: %v", route, err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// parseListParams reads the listing query string. Flags are only set by the
// literal "true" (and, for isRemote, "false"); anything else is ignored.
// Malformed paging falls back to the defaults.
func parseListParams(r *http.Request) query.ListParams {
	q := r.URL.Query()
	p := query.ListParams{
		Source:      q.Get("source"),
		Search:      strings.TrimSpace(q.Get("search")),
		NewOnly:     q.Get("newOnly") == "true",
		AppliedOnly: q.Get("appliedOnly") == "true",
	}
	switch q.Get("isRemote") {
	case "true":
		v := true
		p.IsRemote = &v
	case "false":
		v := false
		p.IsRemote = &v
	}

	p.Page = intParam(q.Get("page"))
	p.Limit = intParam(q.Get("limit"))
	return p
}

// intParam returns 0 (the service default) for empty or unparseable input.
func intParam(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
