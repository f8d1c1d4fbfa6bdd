package services

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"courselens-backend/domain/core/entities"
	pkgerrors "courselens-backend/pkg/errors"
)

// citationTokenPattern matches the citation tokens the assembler hands to
// the generator: [S1], [S2], ... for structural facts, [C1], [C2], ... for
// text chunks.
var citationTokenPattern = regexp.MustCompile(`\[(?:S|C)\d+\]`)

// SourceDescriptor locates the origin of one cited excerpt
type SourceDescriptor struct {
	SourceType entities.SourceType `json:"source_type"`
	SourceID   string              `json:"source_id"`
	// Offset is the character position of the excerpt within the rendered
	// context block.
	Offset int `json:"offset"`
}

// GroundedContext is the rendered evidence handed to the generator: an
// ordered text block in which every line carries a citation token, plus the
// provenance map resolving each token.
type GroundedContext struct {
	Text      string
	Citations map[string]SourceDescriptor
	tokens    []string
}

// Tokens returns all citation tokens in context order
func (g *GroundedContext) Tokens() []string {
	tokens := make([]string, len(g.tokens))
	copy(tokens, g.tokens)
	return tokens
}

// UnknownCitations returns the subset of used tokens that do not resolve
// to any entry in the provenance map.
func (g *GroundedContext) UnknownCitations(used []string) []string {
	var unknown []string
	seen := make(map[string]bool)
	for _, token := range used {
		if _, ok := g.Citations[token]; !ok && !seen[token] {
			seen[token] = true
			unknown = append(unknown, token)
		}
	}
	return unknown
}

// ExtractCitationTokens pulls every citation-shaped token out of generated
// text, preserving first-use order without duplicates.
func ExtractCitationTokens(text string) []string {
	matches := citationTokenPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var tokens []string
	for _, token := range matches {
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// GroundingAssembler renders an EvidenceBundle into a GroundedContext.
// The assembler never invents content: every line in the context block is a
// verbatim structural fact string or a whitespace-normalized excerpt of an
// evidence chunk, prefixed by its citation token.
type GroundingAssembler struct {
	logger *zap.Logger
}

// NewGroundingAssembler creates a new grounding assembler
func NewGroundingAssembler(logger *zap.Logger) *GroundingAssembler {
	return &GroundingAssembler{logger: logger}
}

// Assemble renders the bundle. Structural facts come first, then chunks in
// their ranked order; the provenance map is complete by construction.
func (a *GroundingAssembler) Assemble(bundle *entities.EvidenceBundle) (*GroundedContext, error) {
	if bundle == nil {
		return nil, pkgerrors.NewValidationError("cannot assemble a nil bundle")
	}
	if bundle.IsEmpty() {
		return nil, pkgerrors.NewInsufficientEvidenceError(bundle.QueryID)
	}

	ctx := &GroundedContext{
		Citations: make(map[string]SourceDescriptor, len(bundle.Facts)+len(bundle.Chunks)),
	}

	var b strings.Builder
	for i, fact := range bundle.Facts {
		token := fmt.Sprintf("[S%d]", i+1)
		a.appendLine(ctx, &b, token, fact.Text, SourceDescriptor{
			SourceType: entities.SourceGraph,
			SourceID:   fact.FactID(),
		})
	}
	for i, chunk := range bundle.Chunks {
		token := fmt.Sprintf("[C%d]", i+1)
		a.appendLine(ctx, &b, token, normalizeExcerpt(chunk.Text), SourceDescriptor{
			SourceType: chunk.SourceType,
			SourceID:   chunk.SourceID,
		})
	}

	ctx.Text = b.String()

	a.logger.Debug("Grounded context assembled",
		zap.String("queryID", bundle.QueryID),
		zap.Int("citations", len(ctx.Citations)),
		zap.Int("chars", len(ctx.Text)),
	)

	return ctx, nil
}

func (a *GroundingAssembler) appendLine(ctx *GroundedContext, b *strings.Builder, token, text string, desc SourceDescriptor) {
	desc.Offset = b.Len()
	b.WriteString(token)
	b.WriteString(" ")
	b.WriteString(text)
	b.WriteString("\n")
	ctx.Citations[token] = desc
	ctx.tokens = append(ctx.tokens, token)
}

// normalizeExcerpt collapses runs of whitespace so multi-line source text
// renders as one context line. The words themselves are untouched.
func normalizeExcerpt(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
