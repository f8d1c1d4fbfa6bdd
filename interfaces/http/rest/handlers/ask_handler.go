package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"courselens-backend/application/queries"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/pkg/common"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/utils"
)

// AskHandler serves natural-language catalog questions
type AskHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewAskHandler creates a new ask handler
func NewAskHandler(queryBus *querybus.QueryBus, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		queryBus: queryBus,
		errors:   errors,
		logger:   logger,
	}
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var query queries.AskQuery
	if err := common.ParseJSONBody(r, &query, 64*1024); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(query); err != nil {
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
