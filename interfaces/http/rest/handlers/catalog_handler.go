package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"courselens-backend/application/commands"
	"courselens-backend/application/commands/bus"
	"courselens-backend/application/queries"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/pkg/common"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/utils"
)

// Catalog submissions carry full course lists, so the body limit is
// generous compared to other endpoints.
const maxCatalogBodyBytes = 32 * 1024 * 1024

// CatalogHandler serves catalog activation and catalog statistics
type CatalogHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errors,
		logger:     logger,
	}
}

// Activate handles POST /api/v1/catalog/activate
func (h *CatalogHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ActivateCatalogCommand
	if err := common.ParseJSONBody(r, &cmd, maxCatalogBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(cmd); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError(err.Error()))
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/v1/stats
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetStatsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
