package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/balu-bunny/lambdaTest/shared/awsutil"
	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/handler"
	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/shared/storage"
	storagetypes "github.com/balu-bunny/lambdaTest/shared/storage/types"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/catalog"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/events"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/ledger"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/salesforce"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/stage"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/worker"
)

// Dependencies holds all initialized infrastructure components
type Dependencies struct {
	provider  observability.Provider
	storage   storagetypes.ObjectStorage
	ledger    ledger.Ledger
	catalog   *catalog.File
	connector *salesforce.Connector
	events    events.Publisher
}

// Application holds the complete application stack
type Application struct {
	config  *config.Config
	factory *handler.Factory
	logger  observability.Logger
	metrics observability.Metrics
}

// loadConfiguration loads and validates the application configuration
func loadConfiguration() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initializeDependencies sets up all infrastructure dependencies
func initializeDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	provider := observability.NewProvider(&observability.Config{
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		LogLevel:         cfg.LogLevel,
		AdditionalFields: observability.Fields{"version": cfg.Version},
	})

	logStartup(ctx, cfg, provider)

	store, err := initializeStorage(ctx, cfg, provider)
	if err != nil {
		return nil, err
	}

	statusLedger, err := ledger.New(ctx, cfg, provider.Logger("ledger"), provider.Metrics("ledger"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var objectCatalog *catalog.File
	if cfg.Backup.CatalogFile != "" {
		if objectCatalog, err = catalog.Load(cfg.Backup.CatalogFile); err != nil {
			return nil, err
		}
	}

	secrets, err := initializeSecrets(ctx, cfg)
	if err != nil {
		return nil, err
	}

	connector := salesforce.NewConnector(cfg.Salesforce, cfg.HTTP, secrets, objectCatalog,
		provider.Logger("salesforce"), provider.Metrics("salesforce"))

	publisher, err := events.New(ctx, cfg, provider.Logger("events"), provider.Metrics("events"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize events: %w", err)
	}

	return &Dependencies{
		provider:  provider,
		storage:   store,
		ledger:    statusLedger,
		catalog:   objectCatalog,
		connector: connector,
		events:    publisher,
	}, nil
}

// logStartup logs application startup information
func logStartup(ctx context.Context, cfg *config.Config, provider observability.Provider) {
	provider.Logger("main").Info(ctx, "Starting application", observability.Fields{
		"service":     cfg.ServiceName,
		"version":     cfg.Version,
		"environment": cfg.Environment,
		"storage":     cfg.Storage.Provider,
		"ledger":      cfg.Ledger.Provider,
		"events":      cfg.Events.Provider,
	})
	provider.Metrics("main").RecordSuccess("application_start")
}

// initializeStorage sets up the object store with observability
func initializeStorage(ctx context.Context, cfg *config.Config, provider observability.Provider) (storagetypes.ObjectStorage, error) {
	logger, metrics := provider.Logger("storage"), provider.Metrics("storage")

	store, err := storage.GetProvider().Open(ctx, &cfg.Storage, logger, metrics)
	if err != nil {
		logger.Error(ctx, "Failed to initialize storage", err, nil)
		metrics.RecordError("init", "storage")
		return nil, err
	}
	return store, nil
}

// initializeSecrets returns nil when credentials come from the environment.
func initializeSecrets(ctx context.Context, cfg *config.Config) (*salesforce.SecretLoader, error) {
	if cfg.Salesforce.SecretID == "" {
		return nil, nil
	}

	awsCfg, err := awsutil.LoadConfig(ctx, awsutil.Options{
		Region:     cfg.AWS.Region,
		MaxRetries: cfg.Storage.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}
	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.IsLocal() && cfg.AWS.LocalStackEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.LocalStackEndpoint)
		}
	})
	return salesforce.NewSecretLoader(client), nil
}

// buildApplication assembles the stages behind the handler factory
func buildApplication(cfg *config.Config, deps *Dependencies) *Application {
	stages := stage.New(stage.Deps{
		Remote:  stage.SalesforceConnector(deps.connector),
		Storage: deps.storage,
		Ledger:  deps.ledger,
		Objects: catalog.Resolver{Explicit: cfg.Backup.ObjectList, File: deps.catalog},
		Events:  deps.events,
		Config:  cfg.Backup,
		Logger:  deps.provider.Logger("stage"),
		Metrics: deps.provider.Metrics("stage"),
	})

	w := worker.NewStageWorker(stages, deps.provider.Logger("worker"), deps.provider.Metrics("worker"))

	return &Application{
		config:  cfg,
		factory: handler.NewFactory(w, deps.provider).WithHandlerConfig(cfg.Handler),
		logger:  deps.provider.Logger("main"),
		metrics: deps.provider.Metrics("main"),
	}
}

// bootstrap runs the startup sequence shared by every command.
func bootstrap(ctx context.Context) (*Application, error) {
	cfg, err := loadConfiguration()
	if err != nil {
		return nil, err
	}

	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return buildApplication(cfg, deps), nil
}
