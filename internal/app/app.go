// Package app assembles the intake pipeline from configuration. Both the
// HTTP server and the intakectl CLI build their services through it.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/api/http/handlers"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/llm"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/persistence"
	"github.com/spec-kit/ticket-intake/internal/repository"
	"github.com/spec-kit/ticket-intake/internal/search"
	"github.com/spec-kit/ticket-intake/internal/sequence"
	"github.com/spec-kit/ticket-intake/internal/service"
	"github.com/spec-kit/ticket-intake/internal/worker"
)

const webhookIssuer = "ticket-intake"

// App holds every long-lived component.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Catalog     *catalog.Catalog
	Allocator   *sequence.Allocator
	Corpus      repository.CorpusRepository
	Technicians repository.TechnicianRepository
	Tickets     repository.TicketRepository
	Intake      *service.IntakeService
	Worker      *worker.NotificationWorker
}

// New connects the configured backends and builds the pipeline. Postgres and
// Redis are optional; without them the in-memory stores are used.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting postgres: %w", err)
	}
	a.Postgres = pg
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	a.Redis = persistence.NewRedis(cfg.Redis, logger)

	a.Catalog, err = catalog.Load(cfg.Catalog.Path)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	logger.Info("reference catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Strings("fields", a.Catalog.Fields()))

	a.Allocator = sequence.NewAllocator(a.sequenceStore(), logger)
	if err := a.buildStores(); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Intake = a.buildIntake()
	return a, nil
}

func (a *App) sequenceStore() sequence.Store {
	cfg := a.Config.Sequence
	switch cfg.Backend {
	case config.SequenceBackendPostgres:
		if a.Postgres.Enabled() {
			return repository.NewSequenceRepository(a.Postgres.PoolHandle())
		}
	case config.SequenceBackendRedis:
		if client := a.Redis.Cmdable(); client != nil {
			return sequence.NewRedisStore(client, 48*time.Hour)
		}
	case config.SequenceBackendFile:
		return sequence.NewFileStore(cfg.FilePath)
	}
	a.Logger.Warn("sequence backend unavailable, counting in memory", zap.String("backend", cfg.Backend))
	return sequence.NewMemoryStore()
}

func (a *App) buildStores() error {
	if a.Postgres.Enabled() {
		pool := a.Postgres.PoolHandle()
		a.Corpus = repository.NewCorpusRepository(pool)
		a.Technicians = repository.NewTechnicianRepository(pool)
		a.Tickets = repository.NewTicketRepository(pool)
		return nil
	}

	var corpus []domain.SimilarTicket
	if path := a.Config.Catalog.CorpusPath; path != "" {
		if err := LoadJSONFile(path, &corpus); err != nil {
			return fmt.Errorf("loading corpus seed: %w", err)
		}
	}
	var techs []domain.Technician
	if path := a.Config.Catalog.TechniciansPath; path != "" {
		if err := LoadJSONFile(path, &techs); err != nil {
			return fmt.Errorf("loading technician seed: %w", err)
		}
	}
	a.Corpus = repository.NewMemoryCorpus(corpus)
	a.Technicians = repository.NewMemoryTechnicianRepository(techs...)
	a.Tickets = repository.NewMemoryTicketRepository()
	a.Logger.Info("using in-memory stores",
		zap.Int("corpus", len(corpus)),
		zap.Int("technicians", len(techs)))
	return nil
}

func (a *App) buildIntake() *service.IntakeService {
	cfg := a.Config
	logger := a.Logger

	completer := llm.WithRetry(&llm.AnthropicClient{
		BaseURL:   cfg.AI.BaseURL,
		APIKey:    cfg.AI.APIKey,
		MaxTokens: cfg.AI.MaxTokens,
		Client:    &http.Client{Timeout: cfg.AI.Timeout()},
	}, cfg.AI.MaxRetries, cfg.AI.Timeout())

	opts := []search.CascadeOption{
		search.WithTierTimeout(cfg.Similarity.TierTimeout()),
		search.WithMetrics(a.Metrics),
	}
	if ttl := cfg.Similarity.CacheTTL(); ttl > 0 {
		if client := a.Redis.Cmdable(); client != nil {
			opts = append(opts, search.WithCache(search.NewRedisCache(client), ttl))
		}
	}
	cascade := search.NewDefaultCascade(a.Corpus, cfg.Similarity.Threshold, logger, opts...)

	dispatcher := events.NewInMemoryDispatcher()
	a.Worker = worker.NewNotificationWorker(dispatcher, logger,
		cfg.Notification.QueueSize, cfg.Notification.Workers, cfg.Notification.Timeout())
	var signer *auth.WebhookSigner
	if cfg.Notification.WebhookSecret != "" {
		signer = auth.NewWebhookSigner(cfg.Notification.WebhookSecret, webhookIssuer, 0)
	}
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: a.Worker,
		Logger:     logger,
		Config:     cfg.Notification,
		Signer:     signer,
		HTTPClient: &http.Client{Timeout: cfg.Notification.Timeout()},
	})
	worker.StartNotificationWorker(a.Worker, notifications)

	return service.NewIntakeService(service.IntakeDependencies{
		Allocator:  a.Allocator,
		Extractor:  service.NewExtractor(completer, cfg.AI.ExtractModel, cfg.AI.MaxTokens, logger),
		Similarity: cascade,
		Classifier: service.NewClassifier(completer, a.Catalog, cfg.AI.ClassifyModel, cfg.AI.MaxTokens, logger),
		Drafter:    service.NewDrafter(completer, cfg.AI.ResolutionModel, cfg.AI.MaxTokens, logger),
		Assigner: service.NewAssignmentService(service.AssignmentDependencies{
			TechnicianRepo: a.Technicians,
			Config:         cfg.Assignment,
			Logger:         logger,
		}),
		TicketRepo: a.Tickets,
		Dispatcher: a.Worker,
		Logger:     logger,
		Metrics:    a.Metrics,
		TopN:       cfg.Similarity.TopN,
		Assignment: cfg.Assignment,
	})
}

// HealthChecks lists the readiness probes for the configured backends.
func (a *App) HealthChecks() []handlers.DependencyCheck {
	checks := []handlers.DependencyCheck{{Name: "postgres"}, {Name: "redis"}}
	if a.Postgres.Enabled() {
		checks[0].Ping = a.Postgres.Ping
	}
	if a.Redis != nil {
		checks[1].Ping = a.Redis.Ping
	}
	return checks
}

// Close drains pending notifications and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Worker != nil {
		if err := a.Worker.Stop(ctx); err != nil {
			a.Logger.Warn("notification queue not drained", zap.Error(err))
		}
	}
	a.Redis.Close()
	a.Postgres.Close()
}

// LoadJSONFile decodes a JSON file into v. Comments and trailing commas are
// tolerated.
func LoadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonc.ToJSON(data), v)
}
