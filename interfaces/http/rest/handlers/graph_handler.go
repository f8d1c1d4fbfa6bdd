package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"courselens-backend/application/queries"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/pkg/common"
	pkgerrors "courselens-backend/pkg/errors"
)

// GraphHandler serves structural queries against the active catalog graph
type GraphHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(queryBus *querybus.QueryBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus: queryBus,
		errors:   errors,
		logger:   logger,
	}
}

// GetPrerequisites handles GET /api/v1/courses/{code}/prerequisites
func (h *GraphHandler) GetPrerequisites(w http.ResponseWriter, r *http.Request) {
	query := queries.GetPrerequisitesQuery{
		CourseCode: chi.URLParam(r, "code"),
		Transitive: r.URL.Query().Get("transitive") == "true",
	}
	h.ask(w, r, query)
}

// GetUnlocks handles GET /api/v1/courses/{code}/unlocks
func (h *GraphHandler) GetUnlocks(w http.ResponseWriter, r *http.Request) {
	query := queries.GetUnlocksQuery{
		CourseCode: chi.URLParam(r, "code"),
		Transitive: r.URL.Query().Get("transitive") == "true",
	}
	h.ask(w, r, query)
}

// GetOverlap handles GET /api/v1/courses/overlap?a=...&b=...
func (h *GraphHandler) GetOverlap(w http.ResponseWriter, r *http.Request) {
	query := queries.GetOverlapQuery{
		CourseA: r.URL.Query().Get("a"),
		CourseB: r.URL.Query().Get("b"),
	}
	h.ask(w, r, query)
}

// GetPath handles GET /api/v1/courses/path?from=...&to=...
func (h *GraphHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	query := queries.GetPathQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	h.ask(w, r, query)
}

func (h *GraphHandler) ask(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	if err := query.Validate(); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
