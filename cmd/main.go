package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/segmented-transcript-translator/internal/backend"
	"github.com/MimeLyc/segmented-transcript-translator/internal/config"
	"github.com/MimeLyc/segmented-transcript-translator/internal/engine"
	"github.com/MimeLyc/segmented-transcript-translator/internal/httpapi"
	"github.com/MimeLyc/segmented-transcript-translator/internal/persistence"
	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
	"github.com/MimeLyc/segmented-transcript-translator/pkg/log"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatal("Failed to open store: %v", err)
	}
	defer store.Close()

	client, err := backend.NewClient(cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create backend client: %v", err)
	}

	hub := httpapi.NewHub()
	manager := task.NewManager(store, hub)

	eng := engine.New(manager, client, engine.Config{
		Concurrency:           cfg.Translate.Concurrency,
		NotificationRetention: time.Duration(cfg.Server.NotificationRetentionDays) * 24 * time.Hour,
		CompactLines:          cfg.Translate.CompactLines,
		FormalTone:            cfg.Translate.FormalTone,
	})
	eng.Recover()

	c := cron.New()
	if err := eng.Schedule(c); err != nil {
		log.Fatal("Failed to schedule maintenance jobs: %v", err)
	}
	c.Start()
	defer c.Stop()

	srv := httpapi.NewServer(eng, manager,
		httpapi.WithHub(hub),
		httpapi.WithDefaultTargetLanguage(cfg.Translate.TargetLanguage),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Server.HTTPAddr)
		errCh <- srv.ListenAndServe(cfg.Server.HTTPAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("HTTP server stopped: %v", err)
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}
	eng.Shutdown()
}
