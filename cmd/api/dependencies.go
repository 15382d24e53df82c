package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/aqarbay-api/internal/domain/enrichment"
	"github.com/FACorreiaa/aqarbay-api/internal/domain/poi"
	"github.com/FACorreiaa/aqarbay-api/internal/domain/property"
	"github.com/FACorreiaa/aqarbay-api/internal/search"
	"github.com/FACorreiaa/aqarbay-api/pkg/config"
	"github.com/FACorreiaa/aqarbay-api/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Clients
	Overpass *poi.OverpassClient
	Indexer  search.Indexer
	Redis    *redis.Client

	// Repositories
	POIRepo      poi.Repository
	PropertyRepo property.Repository

	// Services
	POIService      *poi.ServiceImpl
	EnrichmentQueue *enrichment.Queue
	PropertyService property.Service

	// Handlers
	POIHandler        *poi.Handler
	PropertyHandler   *property.Handler
	EnrichmentHandler *enrichment.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize external clients
	if err := deps.initClients(); err != nil {
		deps.Cleanup(context.Background())
		return nil, fmt.Errorf("failed to init clients: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize services
	deps.initServices()

	// Initialize handlers
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initClients constructs the long lived clients for external services once.
func (d *Dependencies) initClients() error {
	d.Overpass = poi.NewOverpassClient(d.Config.Overpass.URL, d.Config.Overpass.Timeout, d.Logger)

	d.Indexer = search.NoopIndexer{}
	if url := d.Config.Search.ElasticURL; url != "" {
		indexer, err := search.NewElasticIndexer(url, d.Config.Search.Index, d.Logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := indexer.EnsureIndex(ctx); err != nil {
			return err
		}
		d.Indexer = indexer
		d.Logger.Info("search indexer connected", slog.String("index", d.Config.Search.Index))
	}

	if url := d.Config.Redis.URL; url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			// Rate limiting degrades to the in-process limiter.
			d.Logger.Warn("redis unreachable, per-client rate limits disabled", slog.Any("error", err))
			_ = client.Close()
		} else {
			d.Redis = client
			d.Logger.Info("redis connected")
		}
	}

	d.Logger.Info("clients initialized")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.POIRepo = poi.NewRepository(d.DB.Pool, d.Logger)
	d.PropertyRepo = property.NewRepository(d.DB.Pool, d.Logger)
	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	d.POIService = poi.NewServiceImpl(d.Overpass, d.POIRepo, poi.Options{
		RadiusMeters:     d.Config.Overpass.RadiusMeters,
		LimitPerCategory: d.Config.Overpass.LimitPerCategory,
		Locale:           d.Config.Overpass.Locale,
	}, d.Logger)

	var enqueuer property.Enqueuer
	if d.Config.Enrichment.Enabled {
		d.EnrichmentQueue = enrichment.NewQueue(d.POIService, enrichment.Config{
			Workers:    d.Config.Enrichment.Workers,
			QueueSize:  d.Config.Enrichment.QueueSize,
			JobTimeout: d.Config.Enrichment.JobTimeout,
			HistoryTTL: d.Config.Enrichment.HistoryTTL,
		}, d.Logger)
		d.EnrichmentQueue.Start()
		enqueuer = d.EnrichmentQueue
	} else {
		d.Logger.Warn("POI enrichment disabled")
	}

	d.PropertyService = property.NewServiceImpl(d.PropertyRepo, d.Indexer, enqueuer, d.POIService, d.Logger)
	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.POIHandler = poi.NewHandler(d.POIService, d.PropertyService, d.Logger)
	d.PropertyHandler = property.NewHandler(d.PropertyService, d.POIService, d.Logger)
	if d.EnrichmentQueue != nil {
		d.EnrichmentHandler = enrichment.NewHandler(d.EnrichmentQueue, d.Logger)
	}
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources. Running enrichment jobs get until ctx
// expires to finish.
func (d *Dependencies) Cleanup(ctx context.Context) {
	if d.EnrichmentQueue != nil {
		if err := d.EnrichmentQueue.Shutdown(ctx); err != nil {
			d.Logger.Warn("enrichment queue did not drain", slog.Any("error", err))
		}
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
