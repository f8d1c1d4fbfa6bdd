package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"courselens-backend/application/commands"
	"courselens-backend/application/commands/bus"
	"courselens-backend/application/ports"
	"courselens-backend/application/queries"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/application/services"
	"courselens-backend/domain/versioning"
	"courselens-backend/infrastructure/cache"
	"courselens-backend/infrastructure/config"
	"courselens-backend/infrastructure/embedding"
	"courselens-backend/infrastructure/generation"
	pgstore "courselens-backend/infrastructure/persistence/pgvector"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
	"courselens-backend/pkg/ratelimit"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideErrorHandler creates the HTTP error handler
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvidePostgresPool opens the evidence store pool and applies the schema
func ProvidePostgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgstore.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pgstore.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// ProvideEvidenceSearcher creates the pgvector-backed evidence searcher
func ProvideEvidenceSearcher(pool *pgxpool.Pool, logger *zap.Logger) ports.EvidenceSearcher {
	return pgstore.NewEvidenceStore(pool, logger)
}

// ProvideEmbedder creates the embedding client
func ProvideEmbedder(cfg *config.Config) ports.Embedder {
	return embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimension)
}

// ProvideGenerator creates the generation client
func ProvideGenerator(cfg *config.Config) ports.Generator {
	return generation.NewClient(cfg.GenerationEndpoint, cfg.GenerationModel)
}

// ProvideAnswerCache creates the answer cache: redis when configured, an
// in-process cache otherwise.
func ProvideAnswerCache(cfg *config.Config, logger *zap.Logger) ports.Cache {
	if cfg.RedisAddress != "" {
		return cache.NewRedisCache(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, logger)
	}
	return cache.NewMemoryCache()
}

// ProvideSnapshotHolder creates the shared catalog snapshot holder
func ProvideSnapshotHolder() *versioning.SnapshotHolder {
	return versioning.NewSnapshotHolder()
}

// ProvideSnapshotProvider exposes the holder through its read-only port
func ProvideSnapshotProvider(holder *versioning.SnapshotHolder) ports.SnapshotProvider {
	return holder
}

// ProvideRegistry creates the prometheus registry served at /metrics
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates metrics instance
func ProvideMetrics(registry *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(registry)
}

// ProvideRateLimiter creates the generation rate limiter
func ProvideRateLimiter(cfg *config.Config) ports.RateLimiter {
	return ratelimit.PerMinute(cfg.GenerationRateLimit)
}

// ProvideRetrievalCoordinator creates the retrieval coordinator
func ProvideRetrievalCoordinator(
	searcher ports.EvidenceSearcher,
	embedder ports.Embedder,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.RetrievalCoordinator {
	retrievalCfg := services.DefaultRetrievalConfig()
	retrievalCfg.TopK = cfg.RetrievalTopK
	retrievalCfg.BundleBudget = cfg.BundleBudget
	retrievalCfg.MaxRetries = cfg.RetrievalRetries
	return services.NewRetrievalCoordinator(searcher, embedder, retrievalCfg, metrics, logger)
}

// ProvideGroundingAssembler creates the grounding assembler
func ProvideGroundingAssembler(logger *zap.Logger) *services.GroundingAssembler {
	return services.NewGroundingAssembler(logger)
}

// ProvideSynthesisOrchestrator creates the synthesis orchestrator
func ProvideSynthesisOrchestrator(
	retrieval *services.RetrievalCoordinator,
	assembler *services.GroundingAssembler,
	generator ports.Generator,
	snapshots ports.SnapshotProvider,
	answerCache ports.Cache,
	limiter ports.RateLimiter,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.SynthesisOrchestrator {
	synthCfg := services.DefaultSynthesisConfig()
	synthCfg.GenerationTimeout = cfg.GenerationTimeout
	synthCfg.AnswerCacheTTL = cfg.AnswerCacheTTL
	return services.NewSynthesisOrchestrator(
		retrieval, assembler, generator, snapshots, answerCache, limiter, synthCfg, metrics, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) (interface{}, error)
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	holder *versioning.SnapshotHolder,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus()

	activateHandler := commands.NewActivateCatalogHandler(holder, metrics, logger)
	commandBus.Register(commands.ActivateCatalogCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			activateCmd, ok := cmd.(commands.ActivateCatalogCommand)
			if !ok {
				return nil, fmt.Errorf("invalid command type")
			}
			return activateHandler.Handle(ctx, activateCmd)
		},
	})

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// graphQueryCacheTTL bounds memory held by cached structural query results.
// Correctness does not depend on it: keys are scoped to the active catalog
// version, so a swap makes every prior entry unreachable immediately.
const graphQueryCacheTTL = 5 * time.Minute

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	orchestrator *services.SynthesisOrchestrator,
	snapshots ports.SnapshotProvider,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()
	caching := querybus.NewCachingMiddleware(NewInMemoryCache(), graphQueryCacheTTL, func(ctx context.Context) string {
		snapshot, err := snapshots.Current()
		if err != nil {
			return ""
		}
		return snapshot.VersionID
	})

	// Ask runs the full synthesis pipeline; its results are cached inside
	// the orchestrator keyed by catalog version, not here.
	askHandler := queries.NewAskHandler(orchestrator)
	queryBus.Register(queries.AskQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			askQuery, ok := query.(queries.AskQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return askHandler.Handle(ctx, askQuery)
		},
	})

	prereqHandler := queries.NewGetPrerequisitesHandler(snapshots)
	queryBus.Register(queries.GetPrerequisitesQuery{}, caching.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(queries.GetPrerequisitesQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return prereqHandler.Handle(ctx, q)
		},
	}))

	unlocksHandler := queries.NewGetUnlocksHandler(snapshots)
	queryBus.Register(queries.GetUnlocksQuery{}, caching.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(queries.GetUnlocksQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return unlocksHandler.Handle(ctx, q)
		},
	}))

	overlapHandler := queries.NewGetOverlapHandler(snapshots)
	queryBus.Register(queries.GetOverlapQuery{}, caching.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(queries.GetOverlapQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return overlapHandler.Handle(ctx, q)
		},
	}))

	pathHandler := queries.NewGetPathHandler(snapshots)
	queryBus.Register(queries.GetPathQuery{}, caching.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(queries.GetPathQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return pathHandler.Handle(ctx, q)
		},
	}))

	statsHandler := queries.NewGetStatsHandler(snapshots)
	queryBus.Register(queries.GetStatsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(queries.GetStatsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return statsHandler.Handle(ctx, q)
		},
	})

	return queryBus
}
