package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/adpack/api"
	"github.com/use-agent/adpack/collector"
	"github.com/use-agent/adpack/config"
	"github.com/use-agent/adpack/courier"
	"github.com/use-agent/adpack/exporter"
	"github.com/use-agent/adpack/extractor"
	"github.com/use-agent/adpack/packager"
	"github.com/use-agent/adpack/saver"
	"github.com/use-agent/adpack/stealth"
	"github.com/use-agent/adpack/store"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("adpack starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
	)

	// appCtx outlives individual requests; background export runs and
	// the courier serve loop are bound to it.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. Initialise collector (launches browser) ──────────────────
	col, err := collector.New(cfg.Browser, cfg.Collector, extractor.DefaultHeuristics())
	if err != nil {
		slog.Error("failed to initialise collector", "error", err)
		os.Exit(1)
	}
	defer col.Close()

	// ── 4. State store ──────────────────────────────────────────────
	st := store.New()

	// ── 5. Courier + packager serve loop ────────────────────────────
	cr := courier.New(cfg.Courier.QueueDepth, cfg.Courier.Timeout)
	sv := saver.NewDisk(cfg.Saver.RootDir)
	pk := packager.New(sv, packager.Options{
		Proxy:             cfg.Packager.Proxy,
		FetchRatePerSec:   cfg.Packager.FetchRatePerSec,
		FetchBurst:        cfg.Packager.FetchBurst,
		AssetCacheEntries: cfg.Packager.AssetCacheEntries,
	})
	go cr.Serve(appCtx, pk.HandleRequest)

	// ── 6. Exporter ─────────────────────────────────────────────────
	ex := exporter.New(st, cr, exporter.Options{
		BatchSize:  cfg.Export.BatchSize,
		Folder:     cfg.Export.Folder,
		GraceDelay: cfg.Export.GraceDelay,
		Policy: stealth.Policy{
			RestMin: cfg.Export.RestMin,
			RestMax: cfg.Export.RestMax,
		},
		WebhookURL:    cfg.Export.WebhookURL,
		WebhookSecret: cfg.Export.WebhookSecret,
	})

	// ── 7. Setup router + HTTP server ───────────────────────────────
	router := api.NewRouter(appCtx, col, st, ex, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Stop accepting export work, then give in-flight requests 5 seconds.
	appCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// col.Close() runs via defer and kills Chrome.
	slog.Info("adpack stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
