package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"PostPilot/internal/approval"
	"PostPilot/internal/config"
	"PostPilot/internal/infrastructure/content"
	"PostPilot/internal/infrastructure/hackernews"
	"PostPilot/internal/infrastructure/linkedin"
	"PostPilot/internal/infrastructure/llm"
	"PostPilot/internal/infrastructure/newsroom"
	"PostPilot/internal/infrastructure/scheduler"
	"PostPilot/internal/infrastructure/telegram"
	"PostPilot/internal/logging"
	"PostPilot/internal/ports"
	"PostPilot/internal/publisher"
	"PostPilot/internal/source"
	"PostPilot/internal/storage"
	"PostPilot/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	channel   *approval.Channel
	transport *telegram.Transport
	store     *storage.SQLiteStore
	publisher *publisher.Publisher
}

// New builds a runnable application instance. The approval transport is the
// only collaborator whose construction failure is fatal: without it there is
// no workflow.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path, baseLogger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open processed ledger: %w", err)
	}

	transport, err := telegram.New(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.PollTimeout.Std(),
		baseLogger.With("component", "telegram"),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open approval transport: %w", err)
	}

	channel := approval.NewChannel(transport, baseLogger.With("component", "approval"))

	httpClient := &http.Client{Timeout: cfg.HTTP.RequestTimeout.Std()}

	registry := source.NewRegistry()
	registry.Register("hackernews", func(sc config.SourceConfig, client *http.Client, _ *slog.Logger) ports.SourceProvider {
		return hackernews.New(sc.Name, sc.URL, sc.Query, sc.Keywords, client)
	})
	registry.Register("newsroom", func(sc config.SourceConfig, client *http.Client, _ *slog.Logger) ports.SourceProvider {
		return newsroom.New(sc.Name, sc.URL, client)
	})

	var entries []source.Entry
	for _, sc := range cfg.Sources {
		if !sc.Enabled {
			continue
		}
		provider, err := registry.Build(sc, httpClient, baseLogger)
		if err != nil {
			baseLogger.Warn("skipping unknown source", "source", sc.Name, "kind", sc.Kind, "error", err)
			continue
		}
		entries = append(entries, source.Entry{Provider: provider, MaxItems: sc.MaxItems})
	}

	aggregator := source.NewAggregator(
		entries,
		cfg.HTTP.MaxRetries,
		cfg.HTTP.RetryDelay.Std(),
		baseLogger.With("component", "source"),
	)

	executor := linkedin.NewExecutor(cfg.Publish.ExecutorURL, cfg.Publish.APIKey, 0)
	pub := publisher.New(executor, cfg.Publish.Prefix, cfg.Publish.Suffix, baseLogger.With("component", "publisher"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:          aggregator,
		Store:           store,
		Fetcher:         content.New(httpClient, cfg.LLM.MaxContentWords),
		Summarizer:      llm.NewSummarizer(cfg.LLM, cfg.HTTP, baseLogger.With("component", "summarizer")),
		Approval:        channel,
		Publisher:       pub,
		ApprovalTimeout: cfg.Telegram.ApprovalTimeout.Std(),
		DedupeOverride:  cfg.DedupeOverride,
		Logger:          baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		channel:   channel,
		transport: transport,
		store:     store,
		publisher: pub,
	}, nil
}

// Run starts the inbound listener and executes the pipeline once or on the
// configured schedule until ctx is cancelled. All resources are released on
// every exit path.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.transport.Start(ctx)

	listenerDone := make(chan error, 1)
	go func() {
		listenerDone <- a.channel.Run(ctx)
	}()

	defer func() {
		if err := a.channel.Close(); err != nil {
			a.logger.Warn("approval channel close failed", "error", err)
		}
		<-listenerDone
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close failed", "error", err)
		}
		if err := a.store.Close(); err != nil {
			a.logger.Warn("ledger close failed", "error", err)
		}
	}()

	interval := a.cfg.Scheduler.Interval()
	if interval <= 0 {
		return a.pipeline.ProcessRun(ctx)
	}

	runner := usecase.NewRunner(scheduler.NewInterval(interval), a.pipeline)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduled runs started", "every", a.cfg.Scheduler.Every)

	<-ctx.Done()
	if err := runner.Stop(context.Background()); err != nil {
		a.logger.Warn("scheduler stop failed", "error", err)
	}
	return nil
}
