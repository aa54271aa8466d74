package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/loci-places-engine/internal/domain/places"
	"github.com/FACorreiaa/loci-places-engine/internal/provider/googleplaces"
	"github.com/FACorreiaa/loci-places-engine/pkg/config"
	"github.com/FACorreiaa/loci-places-engine/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	PlaceStore places.Store

	// Providers
	Provider places.EnrichmentProvider

	// Services
	EnrichmentService places.EnrichmentService
	SearchService     places.SearchService

	// Handlers
	PlacesHandler *places.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes the storage layer
func (d *Dependencies) initRepositories() error {
	d.PlaceStore = places.NewRepository(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes the provider client and the domain services
func (d *Dependencies) initServices() error {
	provider, err := googleplaces.NewClient(googleplaces.Config{
		BaseURL:        d.Config.Provider.BaseURL,
		APIKey:         d.Config.Provider.APIKey,
		MaxPhotos:      d.Config.Provider.MaxPhotos,
		MinPhotoHeight: d.Config.Provider.MinPhotoHeight,
	}, &http.Client{Timeout: d.Config.Provider.RequestTimeout}, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init places provider: %w", err)
	}
	d.Provider = provider

	d.EnrichmentService = places.NewEnrichmentService(
		d.PlaceStore,
		d.Provider,
		d.Config.Engine.MaxConcurrentFetches,
		d.Config.Engine.FetchTimeout,
		d.Logger,
	)

	d.SearchService = places.NewSearchService(d.PlaceStore, places.SearchConfig{
		RadiusMultiplier:    d.Config.Engine.RadiusMultiplier,
		MaxRadiusMeters:     d.Config.Engine.MaxRadiusMeters,
		CenterOffsetDegrees: d.Config.Engine.CenterOffsetDegrees,
		CacheTTL:            d.Config.Engine.SearchCacheTTL,
	}, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.PlacesHandler = places.NewHandler(
		d.EnrichmentService,
		d.SearchService,
		d.Config.Engine.FreshnessThreshold,
		d.Logger,
	)
	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
