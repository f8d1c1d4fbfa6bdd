package di

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"courselens-backend/application/commands/bus"
	"courselens-backend/application/ports"
	querybus "courselens-backend/application/queries/bus"
	"courselens-backend/application/services"
	"courselens-backend/domain/versioning"
	"courselens-backend/infrastructure/config"
	pkgerrors "courselens-backend/pkg/errors"
	"courselens-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	ErrorHandler   *pkgerrors.ErrorHandler
	Pool           *pgxpool.Pool
	SnapshotHolder *versioning.SnapshotHolder
	Snapshots      ports.SnapshotProvider
	Orchestrator   *services.SynthesisOrchestrator
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Registry       *prometheus.Registry
	Metrics        *observability.Metrics
}
