package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/leave-intake/internal/config"
	"github.com/kirillkom/leave-intake/internal/core/ports"
	"github.com/kirillkom/leave-intake/internal/core/usecase"
	"github.com/kirillkom/leave-intake/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/leave-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/leave-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/leave-intake/internal/infrastructure/notify"
	"github.com/kirillkom/leave-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/leave-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/leave-intake/internal/infrastructure/resilience"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Executor *resilience.Executor

	Queue    ports.MessageQueue
	Repo     ports.LicenseRepository
	Exporter ports.LicenseExporter

	ExtractUC  *usecase.ExtractLicenseUseCase
	RegisterUC *usecase.RegisterLicenseUseCase
	DispatchUC *usecase.ReplacementDispatchUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutorWithLogger(cfg.Resilience(), logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewLicenseRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel, ollama.Options{
		Timeout:            config.Seconds(cfg.OllamaTimeoutSeconds),
		ResilienceExecutor: executor,
	})
	model := ollama.NewLicenseModel(ollamaClient)
	pdfText := pdftext.NewExtractor(cfg.PDFMaxChars)

	extractUC := usecase.NewExtractLicenseUseCase(model, pdfText, cfg.MaxUploadBytes)
	registerUC := usecase.NewRegisterLicenseUseCase(repo, queue, cfg.LicensesStrictRUT, logger)
	dispatchUC := usecase.NewReplacementDispatchUseCase(
		repo,
		notify.NewLogNotifier(cfg.ReplacementNotifyTo, logger),
		logger,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Executor: executor,

		Queue:    queue,
		Repo:     repo,
		Exporter: xlsx.NewExporter(),

		ExtractUC:  extractUC,
		RegisterUC: registerUC,
		DispatchUC: dispatchUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
