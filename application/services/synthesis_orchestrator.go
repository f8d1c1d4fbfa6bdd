package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/entities"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
)

// RunState is one state of a synthesis run's lifecycle
type RunState string

const (
	StateReceived   RunState = "RECEIVED"
	StateRetrieving RunState = "RETRIEVING"
	StateAssembling RunState = "ASSEMBLING"
	StateGenerating RunState = "GENERATING"
	StateValidating RunState = "VALIDATING"
	StateDone       RunState = "DONE"
	StateFailed     RunState = "FAILED"
)

// generationInstructions is the baseline instruction set for the generator.
const generationInstructions = "Answer the student's question using only the evidence lines provided. " +
	"Cite the token of every evidence line you rely on, for example [S1] or [C2]. " +
	"If the evidence does not cover part of the question, say so rather than guessing."

// regenerationInstructions is appended for the single retry after an
// ungrounded first attempt.
const regenerationInstructions = " Your previous answer cited tokens that were not provided. " +
	"Cite ONLY tokens that appear in the evidence lines above."

// SynthesisConfig configures orchestration behavior
type SynthesisConfig struct {
	GenerationTimeout time.Duration
	AnswerCacheTTL    time.Duration
}

// DefaultSynthesisConfig returns sensible defaults for synthesis
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		GenerationTimeout: 30 * time.Second,
		AnswerCacheTTL:    15 * time.Minute,
	}
}

// SynthesisOrchestrator drives one query through the state machine
// RECEIVED -> RETRIEVING -> ASSEMBLING -> GENERATING -> VALIDATING ->
// {DONE, FAILED}. Runs are independent: the only shared state is the
// read-only catalog snapshot and the collaborator connections, so any
// number of runs may execute concurrently.
type SynthesisOrchestrator struct {
	retrieval *RetrievalCoordinator
	assembler *GroundingAssembler
	generator ports.Generator
	snapshots ports.SnapshotProvider
	cache     ports.Cache
	limiter   ports.RateLimiter
	config    SynthesisConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSynthesisOrchestrator creates a new synthesis orchestrator
func NewSynthesisOrchestrator(
	retrieval *RetrievalCoordinator,
	assembler *GroundingAssembler,
	generator ports.Generator,
	snapshots ports.SnapshotProvider,
	cache ports.Cache,
	limiter ports.RateLimiter,
	config SynthesisConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SynthesisOrchestrator {
	return &SynthesisOrchestrator{
		retrieval: retrieval,
		assembler: assembler,
		generator: generator,
		snapshots: snapshots,
		cache:     cache,
		limiter:   limiter,
		config:    config,
		metrics:   metrics,
		logger:    logger,
	}
}

// synthesisRun tracks one query's progress through the state machine
type synthesisRun struct {
	id    string
	query string
	state RunState
}

// transition moves the run to the next state. Terminal states are final;
// a transition attempted after DONE or FAILED indicates a programming error
// and panics rather than corrupting the run.
func (r *synthesisRun) transition(next RunState, logger *zap.Logger) {
	if r.state == StateDone || r.state == StateFailed {
		panic("synthesis run transition after terminal state " + string(r.state))
	}
	logger.Debug("Synthesis state transition",
		zap.String("queryID", r.id),
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
	)
	r.state = next
}

// Answer runs one query to one Answer. Query-local failures are returned
// as typed errors and never affect other runs.
func (o *SynthesisOrchestrator) Answer(ctx context.Context, query string) (*entities.Answer, error) {
	snapshot, err := o.snapshots.Current()
	if err != nil {
		return nil, err
	}

	cacheKey := answerCacheKey(snapshot.VersionID, query)
	if cached, ok := o.lookupCachedAnswer(ctx, cacheKey); ok {
		o.metrics.CacheHits.Inc()
		return cached, nil
	}

	run := &synthesisRun{
		id:    uuid.New().String(),
		query: query,
		state: StateReceived,
	}

	// RECEIVED -> RETRIEVING
	run.transition(StateRetrieving, o.logger)
	bundle, err := o.retrieval.Retrieve(ctx, run.id, query, snapshot)
	if err != nil {
		return o.fail(run, err)
	}
	if bundle.IsEmpty() {
		// Total retrieval failure: no graph facts and no chunks.
		return o.fail(run, pkgerrors.NewInsufficientEvidenceError(query))
	}

	// RETRIEVING -> ASSEMBLING (partial-bundle degradation still proceeds)
	run.transition(StateAssembling, o.logger)
	grounded, err := o.assembler.Assemble(bundle)
	if err != nil {
		return o.fail(run, err)
	}

	// ASSEMBLING -> GENERATING
	run.transition(StateGenerating, o.logger)
	raw, err := o.generate(ctx, grounded.Text, generationInstructions)
	if err != nil {
		return o.fail(run, err)
	}

	// GENERATING -> VALIDATING
	run.transition(StateValidating, o.logger)
	used := ExtractCitationTokens(raw)
	if unknown := grounded.UnknownCitations(used); len(unknown) > 0 {
		o.logger.Warn("Generated answer cited unknown tokens, regenerating once",
			zap.String("queryID", run.id),
			zap.Strings("unknown", unknown),
		)
		raw, err = o.generate(ctx, grounded.Text, generationInstructions+regenerationInstructions)
		if err != nil {
			return o.fail(run, err)
		}
		used = ExtractCitationTokens(raw)
		if unknown = grounded.UnknownCitations(used); len(unknown) > 0 {
			return o.fail(run, pkgerrors.NewUngroundedAnswerError(unknown))
		}
	}

	// VALIDATING -> DONE
	answer := &entities.Answer{
		Text:      raw,
		Citations: resolveCitations(used, grounded),
		Coverage:  computeCoverage(query, bundle),
		Degraded:  bundle.Degraded,
		Bundle:    bundle,
	}
	run.transition(StateDone, o.logger)
	o.metrics.QueriesTotal.WithLabelValues("done").Inc()

	o.storeCachedAnswer(ctx, cacheKey, answer)

	return answer, nil
}

// generate invokes the generation capability under the configured timeout
// and the rate limiter. Timeout maps to GenerationTimeoutError so the
// orchestrator fails rather than hangs.
func (o *SynthesisOrchestrator) generate(ctx context.Context, groundedText, instructions string) (string, error) {
	allowed, err := o.limiter.Allow(ctx, "generation")
	if err != nil {
		return "", pkgerrors.NewExternalError("rate limiter", err)
	}
	if !allowed {
		return "", pkgerrors.NewRateLimitError(1, o.config.GenerationTimeout.String())
	}

	gctx, cancel := context.WithTimeout(ctx, o.config.GenerationTimeout)
	defer cancel()

	start := time.Now()
	raw, err := o.generator.Generate(gctx, groundedText, instructions)
	observability.ObserveDuration(o.metrics.GenerationDuration, start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", pkgerrors.NewGenerationTimeoutError(o.config.GenerationTimeout.Milliseconds())
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", pkgerrors.NewExternalError("generator", err)
	}
	return raw, nil
}

// fail marks the run failed, records the outcome, and returns the error
func (o *SynthesisOrchestrator) fail(run *synthesisRun, err error) (*entities.Answer, error) {
	run.transition(StateFailed, o.logger)

	outcome := "failed"
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		outcome = "failed_" + strings.ToLower(string(appErr.Type))
	}
	o.metrics.QueriesTotal.WithLabelValues(outcome).Inc()

	o.logger.Warn("Synthesis run failed",
		zap.String("queryID", run.id),
		zap.Error(err),
	)
	return nil, err
}

// resolveCitations maps the tokens the answer actually used to their
// source descriptors. Every token is known at this point; validation ran
// before.
func resolveCitations(used []string, grounded *GroundedContext) []entities.Citation {
	citations := make([]entities.Citation, 0, len(used))
	for _, token := range used {
		desc := grounded.Citations[token]
		citations = append(citations, entities.Citation{
			Token:      token,
			SourceType: desc.SourceType,
			SourceID:   desc.SourceID,
		})
	}
	return citations
}

// computeCoverage measures the fraction of the question's sub-intents
// addressed by at least one evidence item: each mentioned course counts as
// one sub-intent, plus one per requested structural comparison.
func computeCoverage(query string, bundle *entities.EvidenceBundle) float64 {
	intents := DetectIntents(query, bundle.MentionedCourses)
	total := intents.SubIntents(len(bundle.MentionedCourses))

	if len(bundle.MentionedCourses) == 0 {
		if len(bundle.Chunks) > 0 {
			return 1.0
		}
		return 0.0
	}

	satisfied := 0
	for _, code := range bundle.MentionedCourses {
		if courseHasEvidence(code.String(), bundle) {
			satisfied++
		}
	}

	factKinds := make(map[entities.FactKind]bool, len(bundle.Facts))
	for _, fact := range bundle.Facts {
		factKinds[fact.Kind] = true
	}
	if intents.Overlap && len(bundle.MentionedCourses) >= 2 && factKinds[entities.FactOverlap] {
		satisfied++
	}
	if intents.Path && len(bundle.MentionedCourses) >= 2 && factKinds[entities.FactPath] {
		satisfied++
	}

	return float64(satisfied) / float64(total)
}

func courseHasEvidence(code string, bundle *entities.EvidenceBundle) bool {
	for _, fact := range bundle.Facts {
		for _, c := range fact.Courses {
			if c.String() == code {
				return true
			}
		}
	}
	for _, chunk := range bundle.Chunks {
		if chunk.SourceID == code {
			return true
		}
	}
	return false
}

// Answer caching: answers are cached per catalog version and normalized
// question, so a version swap implicitly invalidates everything cached
// against the old version.

func answerCacheKey(versionID, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(versionID + "|" + normalized))
	return "answer:" + hex.EncodeToString(sum[:])
}

func (o *SynthesisOrchestrator) lookupCachedAnswer(ctx context.Context, key string) (*entities.Answer, bool) {
	raw, ok := o.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var answer entities.Answer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		return nil, false
	}
	return &answer, true
}

func (o *SynthesisOrchestrator) storeCachedAnswer(ctx context.Context, key string, answer *entities.Answer) {
	// The bundle is dropped from the cached copy; it is large and callers
	// needing full provenance re-run the query.
	cached := *answer
	cached.Bundle = nil

	raw, err := json.Marshal(&cached)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, key, string(raw), o.config.AnswerCacheTTL); err != nil {
		o.logger.Debug("Answer cache write failed", zap.Error(err))
	}
}
