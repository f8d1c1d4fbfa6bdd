package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/versioning"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
)

type stubGenerator struct {
	mu        sync.Mutex
	calls     int
	responses []string
	delay     time.Duration
	err       error

	lastInstructions string
}

func (g *stubGenerator) Generate(ctx context.Context, _ string, instructions string) (string, error) {
	g.mu.Lock()
	idx := g.calls
	g.calls++
	g.lastInstructions = instructions
	g.mu.Unlock()

	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	if g.err != nil {
		return "", g.err
	}
	if idx < len(g.responses) {
		return g.responses[idx], nil
	}
	if len(g.responses) > 0 {
		return g.responses[len(g.responses)-1], nil
	}
	return "", nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubLimiter struct {
	deny bool
}

func (l *stubLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return !l.deny, nil
}

type stubCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]string)}
}

func (c *stubCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

func (c *stubCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func buildOrchestrator(
	t *testing.T,
	store *stubStore,
	generator *stubGenerator,
	limiter ports.RateLimiter,
	cache ports.Cache,
	cfg SynthesisConfig,
) *SynthesisOrchestrator {
	t.Helper()
	holder := versioning.NewSnapshotHolder()
	_, err := holder.Swap(testSnapshot(t))
	require.NoError(t, err)

	coordinator := newTestCoordinator(store, &stubEmbedder{}, fastConfig())
	return NewSynthesisOrchestrator(
		coordinator,
		NewGroundingAssembler(zap.NewNop()),
		generator,
		holder,
		cache,
		limiter,
		cfg,
		observability.NopMetrics(),
		zap.NewNop(),
	)
}

func quickSynthesisConfig() SynthesisConfig {
	cfg := DefaultSynthesisConfig()
	cfg.GenerationTimeout = time.Second
	return cfg
}

func catalogChunkStore() *stubStore {
	return &stubStore{chunks: []entities.EvidenceChunk{
		{ID: "cat:CMPUT 301:0", SourceType: entities.SourceCatalog, SourceID: "CMPUT 301", Text: "Covers object-oriented design and team projects.", Score: 0.9},
	}}
}

func TestAnswer_HappyPath(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		"CMPUT 301 requires CMPUT 201 and CMPUT 204 [S1]. The calendar highlights team projects [C1].",
	}}
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	answer, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.NoError(t, err)
	assert.Contains(t, answer.Text, "[S1]")
	assert.False(t, answer.Degraded)
	assert.Equal(t, 1.0, answer.Coverage)
	require.NotNil(t, answer.Bundle)

	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "[S1]", answer.Citations[0].Token)
	assert.Equal(t, entities.SourceGraph, answer.Citations[0].SourceType)
	assert.Equal(t, "[C1]", answer.Citations[1].Token)
	assert.Equal(t, entities.SourceCatalog, answer.Citations[1].SourceType)
	assert.Equal(t, "CMPUT 301", answer.Citations[1].SourceID)
}

func TestAnswer_ServedFromCacheOnRepeat(t *testing.T) {
	generator := &stubGenerator{responses: []string{"The prerequisite chain is documented [S1]."}}
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	first, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")
	require.NoError(t, err)

	// Question normalization makes casing and spacing irrelevant.
	second, err := orchestrator.Answer(context.Background(), "  what are the PREREQUISITES for cmput 301? ")
	require.NoError(t, err)

	assert.Equal(t, 1, generator.callCount())
	assert.Equal(t, first.Text, second.Text)
	assert.Nil(t, second.Bundle, "cached answers do not carry the bundle")
}

func TestAnswer_GenerationTimeout(t *testing.T) {
	generator := &stubGenerator{delay: 500 * time.Millisecond}
	cfg := quickSynthesisConfig()
	cfg.GenerationTimeout = 20 * time.Millisecond
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{}, newStubCache(), cfg)

	_, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeGenerationTimeout))
}

func TestAnswer_RegeneratesOnceAfterUnknownCitation(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		"Some courses are hard [C9].",
		"CMPUT 301 requires CMPUT 201 [S1].",
	}}
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	answer, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.NoError(t, err)
	assert.Equal(t, 2, generator.callCount())
	assert.Contains(t, generator.lastInstructions, "Cite ONLY tokens")
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "[S1]", answer.Citations[0].Token)
}

func TestAnswer_UngroundedAfterRetry(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		"Some courses are hard [C9].",
		"Still ungrounded [C8].",
	}}
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	_, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUngroundedAnswer))
	assert.Equal(t, 2, generator.callCount())

	appErr := pkgerrors.GetAppError(err)
	assert.Equal(t, []string{"[C8]"}, appErr.Details["unknown_citations"])
}

func TestAnswer_InsufficientEvidence(t *testing.T) {
	generator := &stubGenerator{}
	orchestrator := buildOrchestrator(t, &stubStore{}, generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	// No catalog-verified mention and no retrieved chunks.
	_, err := orchestrator.Answer(context.Background(), "Which electives suit a light schedule?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInsufficientEvidence))
	assert.Zero(t, generator.callCount())
}

func TestAnswer_DegradedBundleStillCompletes(t *testing.T) {
	generator := &stubGenerator{responses: []string{"CMPUT 301 requires CMPUT 201 [S1]."}}
	store := &stubStore{failCalls: 100}
	orchestrator := buildOrchestrator(t, store, generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	answer, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.NotEmpty(t, answer.Citations)
}

func TestAnswer_RateLimited(t *testing.T) {
	generator := &stubGenerator{}
	orchestrator := buildOrchestrator(t, catalogChunkStore(), generator, &stubLimiter{deny: true}, newStubCache(), quickSynthesisConfig())

	_, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRateLimit))
	assert.Zero(t, generator.callCount())
}

func TestAnswer_NoActiveCatalog(t *testing.T) {
	holder := versioning.NewSnapshotHolder()
	coordinator := newTestCoordinator(&stubStore{}, &stubEmbedder{}, fastConfig())
	orchestrator := NewSynthesisOrchestrator(
		coordinator,
		NewGroundingAssembler(zap.NewNop()),
		&stubGenerator{},
		holder,
		newStubCache(),
		&stubLimiter{},
		quickSynthesisConfig(),
		observability.NopMetrics(),
		zap.NewNop(),
	)

	_, err := orchestrator.Answer(context.Background(), "What are the prerequisites for CMPUT 301?")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeNotFound))
}

func TestAnswer_OverlapCoverage(t *testing.T) {
	generator := &stubGenerator{responses: []string{
		"They share prerequisites [S1], so plan for the common chain.",
	}}
	orchestrator := buildOrchestrator(t, &stubStore{}, generator, &stubLimiter{}, newStubCache(), quickSynthesisConfig())

	answer, err := orchestrator.Answer(context.Background(), "Can I take CMPUT 301 and CMPUT 366 together?")

	require.NoError(t, err)
	// Both mentions plus the overlap comparison are covered by the fact.
	assert.Equal(t, 1.0, answer.Coverage)
}
