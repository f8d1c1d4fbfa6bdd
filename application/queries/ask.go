package queries

import (
	"context"
	"errors"
	"strings"

	"courselens-backend/application/services"
	"courselens-backend/domain/core/entities"
)

// AskQuery is a natural-language question about the course catalog
type AskQuery struct {
	Question string `json:"question" validate:"required,min=3,max=2000"`
}

// Validate validates the query
func (q AskQuery) Validate() error {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return errors.New("question is required")
	}
	if len(question) < 3 {
		return errors.New("question is too short")
	}
	if len(question) > MaxQuestionLength {
		return errors.New("question exceeds maximum length")
	}
	return nil
}

const MaxQuestionLength = 2000

// AskHandler runs a question through the full synthesis pipeline
type AskHandler struct {
	orchestrator *services.SynthesisOrchestrator
}

// NewAskHandler creates a new handler instance
func NewAskHandler(orchestrator *services.SynthesisOrchestrator) *AskHandler {
	return &AskHandler{orchestrator: orchestrator}
}

// Handle executes the ask query
func (h *AskHandler) Handle(ctx context.Context, q AskQuery) (*entities.Answer, error) {
	return h.orchestrator.Answer(ctx, strings.TrimSpace(q.Question))
}
