package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/core"
	"github.com/docsift/docsift/internal/corrections"
	"github.com/docsift/docsift/internal/export"
	"github.com/docsift/docsift/internal/llm/gemini"
	"github.com/docsift/docsift/internal/normalize"
	"github.com/docsift/docsift/internal/observability/logging"
	"github.com/docsift/docsift/internal/observability/metrics"
	"github.com/docsift/docsift/internal/prompt"
	"github.com/docsift/docsift/internal/repository"
	"github.com/docsift/docsift/internal/server"
	"github.com/docsift/docsift/internal/taxonomy"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("docsiftd", cfg.Log.Level)
	slog.SetDefault(logger)

	// Configuration errors are fatal to the whole session: no extraction
	// attempt may run without template, lists, and credential.
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	docTypes, err := taxonomy.Load(cfg.ConfigDir.DocumentTypesPath(), logger)
	if err != nil {
		logger.Error("load document types", "error", err)
		os.Exit(1)
	}
	categories, err := taxonomy.Load(cfg.ConfigDir.CategoriesPath(), logger)
	if err != nil {
		logger.Error("load categories", "error", err)
		os.Exit(1)
	}
	correctionLog, err := corrections.Open(cfg.ConfigDir.CorrectionsPath(), logger)
	if err != nil {
		logger.Error("open correction log", "error", err)
		os.Exit(1)
	}
	template, err := prompt.LoadTemplate(cfg.ConfigDir.PromptTemplatePath())
	if err != nil {
		logger.Error("load prompt template", "error", err)
		os.Exit(1)
	}

	db, err := repository.OpenDB(cfg.ConfigDir.DatabasePath())
	if err != nil {
		logger.Error("open job database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()
	jobs := repository.NewJobsRepo(db)
	if err := jobs.EnsureSchema(context.Background()); err != nil {
		logger.Error("ensure job schema", "error", err)
		os.Exit(1)
	}

	m := metrics.NewPipelineMetrics("docsiftd")
	normalizer := normalize.New(normalize.Config{
		Pdftoppm: cfg.Normalize.Pdftoppm,
		DPI:      cfg.Normalize.DPI,
	}, logger)
	extractor := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	processor := core.NewProcessor(
		logger, normalizer, docTypes, categories, correctionLog, template,
		extractor, jobs, m, cfg.Normalize.JPEGQuality,
	)
	exporter := export.NewService(jobs, correctionLog, logger)

	srv := server.New(processor, docTypes, categories, correctionLog, template, exporter, m, logger)

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.App.Listen(cfg.Server.Addr); err != nil {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.App.ShutdownWithContext(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
