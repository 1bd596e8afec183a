package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/codelove/codelove/internal/repository"
	"github.com/codelove/codelove/internal/service"
)

// ProblemHandler serves the problem catalog.
type ProblemHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

func NewProblemHandler(catalog *service.CatalogService, logger *slog.Logger) *ProblemHandler {
	return &ProblemHandler{catalog: catalog, logger: logger}
}

// HandleList returns a page of the catalog.
//
// HTTP: GET /api/problems?limit=50&offset=0
//
// Malformed pagination values fall back to defaults rather than erroring;
// the repository clamps the limit.
func (h *ProblemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var opts repository.ListOptions
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		opts.Offset = v
	}

	problems, err := h.catalog.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, problems)
}

// HandleGet returns a single problem.
//
// HTTP: GET /api/problems/{slug}
func (h *ProblemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	problem, err := h.catalog.Get(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, problem)
}
