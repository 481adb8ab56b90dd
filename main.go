package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/agent"
	"github.com/fmuoria/assessment-report-agent/internal/api"
	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/config"
	"github.com/fmuoria/assessment-report-agent/internal/document"
	"github.com/fmuoria/assessment-report-agent/internal/ingestion"
	"github.com/fmuoria/assessment-report-agent/internal/llm"
	"github.com/fmuoria/assessment-report-agent/internal/logger"
	"github.com/fmuoria/assessment-report-agent/internal/prompt"
	"github.com/fmuoria/assessment-report-agent/internal/session"
	"github.com/fmuoria/assessment-report-agent/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./configs/config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bedomning: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ApplyToEnv()

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()

	db, err := storage.Open(cfg.Database, logger.Component(log, "storage"))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	reports := storage.NewReportStore(db, cat, logger.Component(log, "reports"))
	if err := reports.Migrate(); err != nil {
		return err
	}
	prompts := prompt.NewStore(db, cat, cfg.Prompts.Owner, logger.Component(log, "prompts"))
	if err := prompts.Migrate(); err != nil {
		return err
	}
	if err := prompts.Seed(ctx); err != nil {
		return err
	}

	client, closeClient, err := llm.New(ctx, cfg.LLM, logger.Component(log, "llm"))
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer closeClient()

	sessions, err := session.New(cfg.Session)
	if err != nil {
		return err
	}

	var ocr ingestion.OCR
	if cfg.Ingest.VisionOCR {
		vision, err := ingestion.NewVisionOCR(ctx, cfg.LLM.GoogleCredentialsPath)
		if err != nil {
			return err
		}
		defer vision.Close()
		ocr = vision
	}

	if _, err := os.Stat(cfg.Document.TemplatePath); err != nil {
		log.Warn("document template missing, exports will fail", zap.String("path", cfg.Document.TemplatePath))
	}

	media := ingestion.NewMediaStore(cfg.Media.Dir, cfg.Media.URLPrefix)
	generator := prompt.NewGenerator(prompts, client, cfg.LLM.StyleHeader, logger.Component(log, "prompt")).
		WithTemperature(cfg.LLM.Temperature)

	reportAgent := agent.NewReportAgent(agent.Dependencies{
		Catalog:   cat,
		Reports:   reports,
		Generator: generator,
		Assembler: document.NewAssembler(cfg.Document.TemplatePath, cfg.Document.ImageWidthCM, cat, logger.Component(log, "document")),
		Extractor: ingestion.NewTextExtractor(cfg.Ingest.PdfToTextPath, filepath.Join(cfg.Ingest.UploadsDir, "tmp"), ocr, logger.Component(log, "ingestion")),
		Images:    media,
	}, logger.Component(log, "agent"))

	if err := os.MkdirAll(filepath.Join(cfg.Ingest.UploadsDir, "tmp"), 0755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	server := api.NewServer(api.Options{
		Agent:       reportAgent,
		Reports:     reports,
		Prompts:     prompts,
		Sessions:    sessions,
		Catalog:     cat,
		Uploads:     ingestion.NewFileHandler(cfg.Ingest.UploadsDir),
		Media:       media,
		CookieName:  cfg.Session.CookieName,
		SessionTTL:  cfg.Session.TTL,
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}, logger.Component(log, "api"))

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting assessment report service",
			zap.String("addr", cfg.Server.Addr),
			zap.String("llm_provider", client.Name()),
			zap.String("database", cfg.Database.Driver),
			zap.String("sessions", cfg.Session.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
