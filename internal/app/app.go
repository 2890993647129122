package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"InterviewNotifier/internal/config"
	"InterviewNotifier/internal/domain"
	"InterviewNotifier/internal/infrastructure/csvsource"
	"InterviewNotifier/internal/infrastructure/mailer"
	"InterviewNotifier/internal/infrastructure/storage"
	"InterviewNotifier/internal/logging"
	"InterviewNotifier/internal/source"
	"InterviewNotifier/internal/usecase"
)

// Options come from the CLI surface.
type Options struct {
	InputPath   string
	FromStore   bool
	ForceResend bool
}

// Application wires config to adapters, the pipeline, and lifecycle.
type Application struct {
	provisioner *storage.Provisioner
	pipeline    *usecase.Pipeline
	db          *sql.DB
	logger      *slog.Logger
}

// New builds a runnable application instance. Startup-fatal conditions
// (missing config, unimplemented input mode) surface here, before any
// row is touched.
func New(cfg config.Config, opts Options, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	if opts.FromStore {
		return nil, fmt.Errorf("reading rows back from the outcome store is not implemented yet")
	}
	if opts.InputPath == "" {
		return nil, fmt.Errorf("an input csv path is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	registry := source.NewRegistry()
	registry.Register(csvsource.NewFileSource(opts.InputPath, baseLogger.With("component", "source.csv")))

	src, err := registry.Resolve("csv")
	if err != nil {
		return nil, fmt.Errorf("resolve input mode: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := storage.NewPostgresRepository(db)
	notifier := mailer.NewNotifier(
		cfg.Mailer.Endpoint,
		cfg.Mailer.APIKey,
		cfg.Mailer.From,
		cfg.Mailer.RateLimitRPS,
	)

	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		Store:          store,
		Notifier:       notifier,
		AllowedDomains: cfg.Links.AllowedDomains,
		ForceResend:    opts.ForceResend,
		Logger:         baseLogger.With("component", "dispatcher"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     src,
		Dispatcher: dispatcher,
		Timezone:   cfg.Parsing.Location(),
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		provisioner: storage.NewProvisioner(db, baseLogger.With("component", "provisioner")),
		pipeline:    pipeline,
		db:          db,
		logger:      baseLogger,
	}, nil
}

// Run provisions the store schema and executes one batch to completion.
func (a *Application) Run(ctx context.Context) (domain.Summary, error) {
	if a.pipeline == nil {
		return domain.Summary{}, nil
	}
	defer a.close()

	if err := a.provisioner.EnsureSchema(ctx); err != nil {
		return domain.Summary{}, fmt.Errorf("provision schema: %w", err)
	}

	return a.pipeline.Run(ctx)
}

func (a *Application) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}
