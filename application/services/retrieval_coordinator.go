package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"courselens-backend/application/ports"
	"courselens-backend/domain/core/aggregates"
	"courselens-backend/domain/core/entities"
	"courselens-backend/domain/core/valueobjects"
	"courselens-backend/domain/versioning"
	"courselens-backend/pkg/observability"
)

// RetrievalConfig configures retrieval behavior
type RetrievalConfig struct {
	TopK           int           // maximum chunks requested from the store
	BundleBudget   int           // total character budget for one bundle
	MaxRetries     int           // evidence store search attempts
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration // cap on the backoff delay
	JitterFactor   float64       // random jitter applied to each delay
}

// DefaultRetrievalConfig returns sensible defaults for retrieval
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:           20,
		BundleBudget:   8000,
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		JitterFactor:   0.1,
	}
}

// RetrievalCoordinator translates one user query into a bounded set of
// retrieval actions - targeted graph queries plus one vector search - and
// merges their results into a deterministic EvidenceBundle. Graph queries
// and the vector search run concurrently; both sides complete (or degrade)
// before the bundle is assembled.
type RetrievalCoordinator struct {
	store    ports.EvidenceSearcher
	embedder ports.Embedder
	breaker  *gobreaker.CircuitBreaker
	config   RetrievalConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
	rand     *rand.Rand
	randMu   sync.Mutex
}

// NewRetrievalCoordinator creates a new retrieval coordinator
func NewRetrievalCoordinator(
	store ports.EvidenceSearcher,
	embedder ports.Embedder,
	config RetrievalConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *RetrievalCoordinator {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "evidence-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &RetrievalCoordinator{
		store:    store,
		embedder: embedder,
		breaker:  breaker,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Retrieve builds the evidence bundle for one query against one catalog
// snapshot. Evidence store failure after bounded retries degrades the
// bundle to structural facts only rather than failing the query.
func (c *RetrievalCoordinator) Retrieve(
	ctx context.Context,
	queryID string,
	query string,
	snapshot *versioning.CatalogVersion,
) (*entities.EvidenceBundle, error) {
	start := time.Now()
	defer observability.ObserveDuration(c.metrics.RetrievalDuration, start)

	mentions := c.resolveMentions(query, snapshot.Graph)
	intents := DetectIntents(query, mentions)

	// Graph queries and the vector search are independent reads; fan out
	// and join before assembly.
	var (
		wg       sync.WaitGroup
		facts    []entities.StructuralFact
		chunks   []entities.EvidenceChunk
		degraded bool
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		facts = c.collectStructuralFacts(snapshot.Graph, mentions, intents)
	}()

	go func() {
		defer wg.Done()
		result, err := c.searchWithRetry(ctx, query, mentions)
		if err != nil {
			c.logger.Warn("Evidence store degraded to structural facts only",
				zap.String("queryID", queryID),
				zap.Error(err),
			)
			c.metrics.DegradedBundles.Inc()
			degraded = true
			return
		}
		chunks = result
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle := &entities.EvidenceBundle{
		QueryID:          queryID,
		CatalogVersion:   snapshot.VersionID,
		Facts:            facts,
		Chunks:           rankChunks(chunks),
		Degraded:         degraded,
		MentionedCourses: mentions,
	}
	c.truncateToBudget(bundle)

	c.logger.Debug("Retrieval complete",
		zap.String("queryID", queryID),
		zap.Int("facts", len(bundle.Facts)),
		zap.Int("chunks", len(bundle.Chunks)),
		zap.Bool("degraded", bundle.Degraded),
	)

	return bundle, nil
}

// resolveMentions extracts course-code shaped text and verifies each
// candidate against the snapshot's node set, falling back to a fuzzy match
// (edit distance 1) for near misses like "CMPT 301" for "CMPUT 301".
// Verified mentions are returned in lexical order for determinism.
func (c *RetrievalCoordinator) resolveMentions(
	query string,
	graph *aggregates.CourseGraph,
) []valueobjects.CourseCode {
	var mentions []valueobjects.CourseCode
	seen := make(map[string]bool)

	for _, candidate := range valueobjects.ExtractCourseCodes(query) {
		resolved, ok := resolveCandidate(candidate, graph)
		if !ok || seen[resolved.String()] {
			continue
		}
		seen[resolved.String()] = true
		mentions = append(mentions, resolved)
	}

	sort.Slice(mentions, func(i, j int) bool {
		return mentions[i].String() < mentions[j].String()
	})
	return mentions
}

func resolveCandidate(candidate valueobjects.CourseCode, graph *aggregates.CourseGraph) (valueobjects.CourseCode, bool) {
	if graph.HasCourse(candidate) {
		return candidate, true
	}

	// Fuzzy pass: accept a unique catalog code within edit distance 1.
	var match valueobjects.CourseCode
	matches := 0
	for _, code := range graph.CourseCodes() {
		if editDistanceAtMostOne(candidate.String(), code.String()) {
			match = code
			matches++
		}
	}
	if matches == 1 {
		return match, true
	}
	return valueobjects.CourseCode{}, false
}

// collectStructuralFacts issues the graph queries the phrasing calls for
// and renders each result mechanically into a fact string. Unknown-course
// errors cannot occur here because mentions are catalog-verified.
func (c *RetrievalCoordinator) collectStructuralFacts(
	graph *aggregates.CourseGraph,
	mentions []valueobjects.CourseCode,
	intents IntentSet,
) []entities.StructuralFact {
	var facts []entities.StructuralFact

	for _, code := range mentions {
		if intents.Prerequisites {
			if prereqs, err := graph.PrerequisitesOf(code, true); err == nil {
				facts = append(facts, renderPrerequisitesFact(code, prereqs))
			}
		}
		if intents.Unlocks {
			if unlocked, err := graph.UnlocksOf(code, true); err == nil {
				facts = append(facts, renderUnlocksFact(code, unlocked))
			}
		}
	}

	// Overlap over more than two mentions is evaluated on the lexically
	// first pair; remaining mentions still contribute the facts above.
	if intents.Overlap && len(mentions) >= 2 {
		if report, err := graph.Overlap(mentions[0], mentions[1]); err == nil {
			facts = append(facts, renderOverlapFact(report))
		}
	}

	if intents.Path && len(mentions) >= 2 {
		if path, err := graph.ShortestPath(mentions[0], mentions[1]); err == nil {
			facts = append(facts, renderPathFact(mentions[0], mentions[1], path))
		}
	}

	return facts
}

// searchWithRetry embeds the query and searches the evidence store with
// bounded exponential backoff behind a circuit breaker. All failures along
// this path are treated as transient store unavailability.
func (c *RetrievalCoordinator) searchWithRetry(
	ctx context.Context,
	query string,
	mentions []valueobjects.CourseCode,
) ([]entities.EvidenceChunk, error) {
	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.metrics.EvidenceStoreErrs.Inc()
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	filter := ports.SearchFilter{CourseCodes: mentions}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoffDelay(attempt)):
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.store.Search(ctx, embedding, filter, c.config.TopK)
		})
		if err == nil {
			return result.([]entities.EvidenceChunk), nil
		}

		c.metrics.EvidenceStoreErrs.Inc()
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("evidence store search failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

// backoffDelay computes the exponential backoff delay with jitter for the
// given attempt number (1-based for the first retry).
func (c *RetrievalCoordinator) backoffDelay(attempt int) time.Duration {
	delay := c.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.config.MaxBackoff {
			delay = c.config.MaxBackoff
			break
		}
	}

	c.randMu.Lock()
	jitter := 1 + c.config.JitterFactor*(2*c.rand.Float64()-1)
	c.randMu.Unlock()

	return time.Duration(float64(delay) * jitter)
}

// rankChunks deduplicates by chunk id and orders by descending similarity.
// At equal score, catalog chunks outrank review chunks; within the same
// source type ascending chunk id wins. The rule is deterministic so equal
// inputs always produce equal bundles.
func rankChunks(chunks []entities.EvidenceChunk) []entities.EvidenceChunk {
	byID := make(map[string]entities.EvidenceChunk, len(chunks))
	for _, chunk := range chunks {
		if existing, ok := byID[chunk.ID]; !ok || chunk.Score > existing.Score {
			byID[chunk.ID] = chunk
		}
	}

	ranked := make([]entities.EvidenceChunk, 0, len(byID))
	for _, chunk := range byID {
		ranked = append(ranked, chunk)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].SourceType != ranked[j].SourceType {
			return ranked[i].SourceType == entities.SourceCatalog
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// truncateToBudget drops lowest-ranked chunks until the bundle fits the
// character budget. Structural facts are exact and are never dropped to
// make room for text.
func (c *RetrievalCoordinator) truncateToBudget(bundle *entities.EvidenceBundle) {
	if c.config.BundleBudget <= 0 {
		return
	}
	for len(bundle.Chunks) > 0 && bundle.Size() > c.config.BundleBudget {
		bundle.Chunks = bundle.Chunks[:len(bundle.Chunks)-1]
	}
}

// Fact rendering: every fact string is derived mechanically from graph
// query output. Nothing here paraphrases or invents.

func renderPrerequisitesFact(code valueobjects.CourseCode, prereqs []*entities.Course) entities.StructuralFact {
	courses := []valueobjects.CourseCode{code}
	var text string
	if len(prereqs) == 0 {
		text = fmt.Sprintf("%s has no recorded prerequisites.", code)
	} else {
		text = fmt.Sprintf("%s requires (transitively): %s.", code, joinCodes(prereqs))
		for _, p := range prereqs {
			courses = append(courses, p.Code())
		}
	}
	return entities.StructuralFact{Kind: entities.FactPrerequisites, Courses: courses, Text: text}
}

func renderUnlocksFact(code valueobjects.CourseCode, unlocked []*entities.Course) entities.StructuralFact {
	courses := []valueobjects.CourseCode{code}
	var text string
	if len(unlocked) == 0 {
		text = fmt.Sprintf("%s is not a recorded prerequisite for any course.", code)
	} else {
		text = fmt.Sprintf("%s unlocks (transitively): %s.", code, joinCodes(unlocked))
		for _, u := range unlocked {
			courses = append(courses, u.Code())
		}
	}
	return entities.StructuralFact{Kind: entities.FactUnlocks, Courses: courses, Text: text}
}

func renderOverlapFact(report *aggregates.OverlapReport) entities.StructuralFact {
	var parts []string

	if len(report.SharedPrerequisites) == 0 {
		parts = append(parts, fmt.Sprintf("%s and %s share no prerequisites", report.CourseA, report.CourseB))
	} else {
		shared := make([]string, len(report.SharedPrerequisites))
		for i, code := range report.SharedPrerequisites {
			shared[i] = code.String()
		}
		parts = append(parts, fmt.Sprintf("%s and %s share prerequisites: %s",
			report.CourseA, report.CourseB, strings.Join(shared, ", ")))
	}

	switch {
	case report.AIsPrerequisiteOfB:
		parts = append(parts, fmt.Sprintf("%s is a prerequisite of %s", report.CourseA, report.CourseB))
	case report.BIsPrerequisiteOfA:
		parts = append(parts, fmt.Sprintf("%s is a prerequisite of %s", report.CourseB, report.CourseA))
	default:
		parts = append(parts, "neither is a prerequisite of the other")
	}

	if report.MutuallyExclusive {
		parts = append(parts, "the courses are explicitly excluded from being taken together")
	}

	return entities.StructuralFact{
		Kind:    entities.FactOverlap,
		Courses: []valueobjects.CourseCode{report.CourseA, report.CourseB},
		Text:    strings.Join(parts, "; ") + ".",
	}
}

func renderPathFact(from, to valueobjects.CourseCode, path []*entities.Course) entities.StructuralFact {
	var text string
	if path == nil {
		text = fmt.Sprintf("No prerequisite path leads from %s to %s.", from, to)
	} else {
		steps := make([]string, len(path))
		for i, course := range path {
			steps[i] = course.Code().String()
		}
		text = fmt.Sprintf("Prerequisite path from %s to %s: %s.", from, to, strings.Join(steps, " -> "))
	}
	return entities.StructuralFact{
		Kind:    entities.FactPath,
		Courses: []valueobjects.CourseCode{from, to},
		Text:    text,
	}
}

func joinCodes(courses []*entities.Course) string {
	codes := make([]string, len(courses))
	for i, course := range courses {
		codes[i] = course.Code().String()
	}
	return strings.Join(codes, ", ")
}

// editDistanceAtMostOne reports whether two strings are within Levenshtein
// distance 1 of each other, without computing the full distance matrix.
func editDistanceAtMostOne(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if la > lb {
		a, b = b, a
		la, lb = lb, la
	}
	if lb-la > 1 {
		return false
	}

	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if la == lb {
			i++ // substitution
		}
		j++ // insertion into the shorter string
	}
	return edits+(lb-j)+(la-i) <= 1
}
