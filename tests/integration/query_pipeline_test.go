package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courselens-backend/application/commands"
	"courselens-backend/application/queries"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/application/services"
	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/versioning"
	"courselens-backend/infrastructure/cache"
	"courselens-backend/infrastructure/di"
	"courselens-backend/infrastructure/persistence/memory"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
	"courselens-backend/pkg/ratelimit"
)

// unitEmbedder maps every text to the same unit vector, so every stored
// chunk is an equally good match and ranking falls back to the
// deterministic tie-break rules.
type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

// echoGenerator produces an answer citing every token it was given,
// standing in for the generation capability.
type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, groundedContext, _ string) (string, error) {
	tokens := services.ExtractCitationTokens(groundedContext)
	answer := "Based on the evidence:"
	for _, token := range tokens {
		answer += " " + token
	}
	return answer, nil
}

type pipeline struct {
	holder       *versioning.SnapshotHolder
	catalog      *commands.ActivateCatalogHandler
	store        *memory.EvidenceStore
	orchestrator *services.SynthesisOrchestrator
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NopMetrics()

	holder := versioning.NewSnapshotHolder()
	store := memory.NewEvidenceStore()

	coordinator := services.NewRetrievalCoordinator(
		store,
		unitEmbedder{},
		services.DefaultRetrievalConfig(),
		metrics,
		logger,
	)
	orchestrator := services.NewSynthesisOrchestrator(
		coordinator,
		services.NewGroundingAssembler(logger),
		echoGenerator{},
		holder,
		cache.NewMemoryCache(),
		ratelimit.PerMinute(600),
		services.SynthesisConfig{GenerationTimeout: 5 * time.Second, AnswerCacheTTL: time.Minute},
		metrics,
		logger,
	)

	return &pipeline{
		holder:       holder,
		catalog:      commands.NewActivateCatalogHandler(holder, metrics, logger),
		store:        store,
		orchestrator: orchestrator,
	}
}

func fixtureSubmission() commands.ActivateCatalogCommand {
	return commands.ActivateCatalogCommand{
		Description: "integration fixture",
		Courses: []commands.CourseRecord{
			{Code: "CMPUT 174", Title: "Introduction to Computing", CreditWeight: 3},
			{Code: "CMPUT 175", Title: "Introduction to Computing II", CreditWeight: 3},
			{Code: "CMPUT 201", Title: "Practical Programming Methodology", CreditWeight: 3},
			{Code: "CMPUT 204", Title: "Algorithms I", CreditWeight: 3},
			{Code: "CMPUT 301", Title: "Software Engineering", CreditWeight: 3},
			{Code: "CMPUT 366", Title: "Intelligent Systems", CreditWeight: 3},
			{Code: "STAT 151", Title: "Statistics", CreditWeight: 3},
		},
		Edges: []commands.EdgeRecord{
			{Course: "CMPUT 175", Requires: "CMPUT 174", Kind: "PREREQ"},
			{Course: "CMPUT 201", Requires: "CMPUT 175", Kind: "PREREQ"},
			{Course: "CMPUT 204", Requires: "CMPUT 175", Kind: "PREREQ"},
			{Course: "CMPUT 301", Requires: "CMPUT 201", Kind: "PREREQ"},
			{Course: "CMPUT 301", Requires: "CMPUT 204", Kind: "PREREQ"},
			{Course: "CMPUT 366", Requires: "CMPUT 204", Kind: "PREREQ"},
			{Course: "CMPUT 366", Requires: "STAT 151", Kind: "PREREQ"},
		},
	}
}

func (p *pipeline) activate(t *testing.T) *versioning.CatalogVersion {
	t.Helper()
	version, err := p.catalog.Handle(context.Background(), fixtureSubmission())
	require.NoError(t, err)
	return version
}

func (p *pipeline) seedEvidence(t *testing.T) {
	t.Helper()
	chunks := []entities.EvidenceChunk{
		{
			ID:         "cat:CMPUT 301:0",
			SourceType: entities.SourceCatalog,
			SourceID:   "CMPUT 301",
			Embedding:  []float32{1, 0, 0},
			Text:       "Object-oriented design and analysis with an emphasis on team software projects.",
		},
		{
			ID:         "rev:301-17:0",
			SourceType: entities.SourceReview,
			SourceID:   "CMPUT 301",
			Embedding:  []float32{1, 0, 0},
			Text:       "The group project dominates the workload in the second half of the term.",
		},
	}
	for _, chunk := range chunks {
		require.NoError(t, p.store.Insert(context.Background(), chunk))
	}
}

func TestQueryPipeline_EndToEnd(t *testing.T) {
	p := newPipeline(t)
	version := p.activate(t)
	p.seedEvidence(t)

	answer, err := p.orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.NoError(t, err)
	assert.False(t, answer.Degraded)
	assert.Equal(t, 1.0, answer.Coverage)
	require.NotNil(t, answer.Bundle)
	assert.Equal(t, version.VersionID, answer.Bundle.CatalogVersion)

	// One structural fact plus the two seeded chunks, all cited.
	require.Len(t, answer.Citations, 3)
	assert.Equal(t, entities.SourceGraph, answer.Citations[0].SourceType)
	assert.Contains(t, answer.Bundle.Facts[0].Text,
		"CMPUT 301 requires (transitively): CMPUT 201, CMPUT 204, CMPUT 175, CMPUT 174.")
}

func TestQueryPipeline_OverlapQuestion(t *testing.T) {
	p := newPipeline(t)
	p.activate(t)
	p.seedEvidence(t)

	answer, err := p.orchestrator.Answer(context.Background(), "Can I take CMPUT 301 and CMPUT 366 together?")

	require.NoError(t, err)
	require.NotNil(t, answer.Bundle)
	require.NotEmpty(t, answer.Bundle.Facts)
	overlap := answer.Bundle.Facts[0]
	assert.Equal(t, entities.FactOverlap, overlap.Kind)
	assert.Contains(t, overlap.Text, "share prerequisites: CMPUT 174, CMPUT 175, CMPUT 204")
	assert.Contains(t, overlap.Text, "neither is a prerequisite of the other")
}

func TestQueryPipeline_UnknownCourseYieldsNoFacts(t *testing.T) {
	p := newPipeline(t)
	p.activate(t)

	// No catalog course within edit distance one and nothing in the store.
	_, err := p.orchestrator.Answer(context.Background(), "What are the prerequisites for BIOL 999?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInsufficientEvidence))
}

func TestQueryPipeline_CatalogSwapInvalidatesAnswers(t *testing.T) {
	p := newPipeline(t)
	first := p.activate(t)
	p.seedEvidence(t)

	before, err := p.orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")
	require.NoError(t, err)
	assert.Equal(t, first.VersionID, before.Bundle.CatalogVersion)

	second := p.activate(t)
	require.NotEqual(t, first.VersionID, second.VersionID)

	// The cache keys on the catalog version, so the swap forces a re-run
	// against the new snapshot.
	after, err := p.orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")
	require.NoError(t, err)
	require.NotNil(t, after.Bundle, "a cached answer would carry no bundle")
	assert.Equal(t, second.VersionID, after.Bundle.CatalogVersion)
}

func TestQueryPipeline_GraphQueryCacheFollowsCatalogSwap(t *testing.T) {
	p := newPipeline(t)
	handler := queries.NewGetPrerequisitesHandler(p.holder)
	caching := querybus.NewCachingMiddleware(di.NewInMemoryCache(), time.Minute, func(context.Context) string {
		snapshot, err := p.holder.Current()
		if err != nil {
			return ""
		}
		return snapshot.VersionID
	})
	wrapped := caching.Wrap(querybus.QueryHandlerFunc(func(ctx context.Context, query querybus.Query) (interface{}, error) {
		return handler.Handle(ctx, query.(queries.GetPrerequisitesQuery))
	}))

	first := p.activate(t)
	query := queries.GetPrerequisitesQuery{CourseCode: "CMPUT 301"}

	before, err := wrapped.Handle(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, first.VersionID, before.(*queries.CourseListView).CatalogVersion)

	// Re-activate with CMPUT 301 requiring only CMPUT 204.
	cmd := fixtureSubmission()
	cmd.Edges = []commands.EdgeRecord{
		{Course: "CMPUT 175", Requires: "CMPUT 174", Kind: "PREREQ"},
		{Course: "CMPUT 204", Requires: "CMPUT 175", Kind: "PREREQ"},
		{Course: "CMPUT 301", Requires: "CMPUT 204", Kind: "PREREQ"},
	}
	second, err := p.catalog.Handle(context.Background(), cmd)
	require.NoError(t, err)

	after, err := wrapped.Handle(context.Background(), query)
	require.NoError(t, err)
	view := after.(*queries.CourseListView)
	assert.Equal(t, second.VersionID, view.CatalogVersion,
		"a query after activation must run against the new snapshot, not the cached result")
	require.Len(t, view.Courses, 1)
	assert.Equal(t, "CMPUT 204", view.Courses[0].Code)
}

func TestQueryPipeline_NoCatalogActivated(t *testing.T) {
	p := newPipeline(t)

	_, err := p.orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}
