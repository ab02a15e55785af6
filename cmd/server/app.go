package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/folio-api/internal/api"
	apiMiddleware "github.com/phrazzld/folio-api/internal/api/middleware"
	"github.com/phrazzld/folio-api/internal/config"
	"github.com/phrazzld/folio-api/internal/domain"
	"github.com/phrazzld/folio-api/internal/jsonapi"
	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/phrazzld/folio-api/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry   *jsonapi.Registry
	serializer *jsonapi.Serializer
	validator  *jsonapi.RequestValidator

	resourceService     *service.ResourceService
	relationshipService *service.RelationshipService

	metricsRegistry *prometheus.Registry
}

// newApplication wires the resource engine onto an open database. The
// registry, serializer, validator and services are built once and shared
// read-only by every request.
func newApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	dialect sqlstore.Dialect,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.registry, err = domain.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to build resource registry: %w", err)
	}
	schema := sqlstore.LibrarySchema()
	if err := schema.Check(app.registry); err != nil {
		return nil, fmt.Errorf("resource registry does not match the database schema: %w", err)
	}

	app.serializer = jsonapi.NewSerializer(app.registry, jsonapi.NewURLBuilder(cfg.API.BaseURL))
	app.validator, err = jsonapi.NewRequestValidator(app.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build request validator: %w", err)
	}

	resources := sqlstore.NewResourceStore(db, app.registry, schema, dialect, logger)
	relations := sqlstore.NewRelationshipStore(db, schema, dialect, logger)

	app.resourceService, err = service.NewResourceService(resources, relations, app.registry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource service: %w", err)
	}
	app.relationshipService, err = service.NewRelationshipService(
		resources, relations, app.registry, app.serializer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize relationship service: %w", err)
	}

	app.metricsRegistry = prometheus.NewRegistry()
	app.metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "folio"),
	)

	logger.Info("Application initialized", "resource_types", app.registry.Types())
	return app, nil
}

// setupRouter creates the HTTP handler with every route and middleware.
func (app *application) setupRouter() (http.Handler, error) {
	metrics, err := apiMiddleware.NewMetrics(app.metricsRegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}

	limits := jsonapi.PageLimits{
		DefaultSize: app.config.API.DefaultPageSize,
		MaxSize:     app.config.API.MaxPageSize,
	}
	return api.NewRouter(api.RouterConfig{
		Registry: app.registry,
		Resources: api.NewResourceHandler(
			app.resourceService, app.registry, app.serializer, app.validator, limits, app.logger),
		Relationships: api.NewRelationshipHandler(
			app.relationshipService, app.registry, app.validator, app.logger),
		Metrics:  metrics,
		Gatherer: app.metricsRegistry,
		Ping:     app.db.PingContext,
		Logger:   app.logger,
	}), nil
}

// Run serves HTTP until ctx is cancelled or a shutdown signal arrives.
func (app *application) Run(ctx context.Context) error {
	router, err := app.setupRouter()
	if err != nil {
		app.cleanup()
		return err
	}
	return app.startHTTPServer(ctx, router)
}

// cleanup releases the resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		closeDB(app.db, app.logger)
	}
}
