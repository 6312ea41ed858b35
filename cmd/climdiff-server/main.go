package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/climdiff/climdiff/internal/api"
	"github.com/climdiff/climdiff/internal/auth"
	"github.com/climdiff/climdiff/internal/catalogue"
	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/history"
	"github.com/climdiff/climdiff/internal/metrics"
	"github.com/climdiff/climdiff/internal/pipeline"
	"github.com/climdiff/climdiff/internal/store"
	"github.com/climdiff/climdiff/internal/telemetry"
	"github.com/climdiff/climdiff/internal/ws"
)

// pruneInterval is how often expired history rows are deleted.
const pruneInterval = time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("climdiff-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"catalogue", catalogueSource(cfg.Catalogue),
		"results_ttl", cfg.Server.ResultsTTL,
		"history", cfg.History.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}

	reg := metrics.NewRegistry()
	checkCatalogueCert(ctx, cfg.Catalogue, reg)

	cat, err := pipeline.NewCatalogue(cfg.Catalogue, reg)
	if err != nil {
		slog.Error("failed to build catalogue", "err", err)
		os.Exit(1)
	}
	app := pipeline.New(cfg, cat, reg)

	// Run store with background TTL eviction.
	st := store.New(cfg.Server.ResultsTTL)
	go st.Run(ctx)

	var hist api.History
	var histStore *history.Store
	if cfg.History.Backend == "sqlite" {
		histStore, err = history.Open(cfg.History.Path)
		if err != nil {
			slog.Error("failed to open history", "path", cfg.History.Path, "err", err)
			os.Exit(1)
		}
		hist = histStore
		go pruneHistory(ctx, histStore, cfg.History.Retention)
		slog.Info("history enabled", "path", cfg.History.Path, "retention", cfg.History.Retention)
	}

	handler := api.New(ctx, st, app, hist)

	hub := ws.New(st, cfg.Server.BroadcastInterval)
	handler.OnChange(hub.Notify)
	go hub.Run(ctx)

	// Reload swaps catalogue, window and render settings for later runs.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.SlogLevel())
			newCat, err := pipeline.NewCatalogue(updated.Catalogue, reg)
			if err != nil {
				slog.Error("config reload: catalogue unchanged", "err", err)
				return
			}
			app.Reconfigure(updated, newCat)
			slog.Info("config hot-reloaded", "catalogue", catalogueSource(updated.Catalogue))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		handler,
	))
	httpMux.Handle("/ws/runs", hub)
	httpMux.Handle("/metrics", reg.Handler())

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("climdiff-server shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	handler.Wait()
	if histStore != nil {
		histStore.Close() //nolint:errcheck
	}
	shutdownTracing(shutdownCtx) //nolint:errcheck
}

func catalogueSource(c config.CatalogueConfig) string {
	if c.Directory != "" {
		return "directory:" + c.Directory
	}
	return c.Endpoint
}

// checkCatalogueCert logs the catalogue's TLS certificate status and
// records the days left.
func checkCatalogueCert(ctx context.Context, c config.CatalogueConfig, reg *metrics.Registry) {
	if c.Directory != "" {
		return
	}
	cs := catalogue.CheckTLS(ctx, c)
	if cs == nil {
		return
	}
	attrs := []any{"endpoint", cs.Endpoint, "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer}
	switch cs.Status {
	case catalogue.CertValid:
		slog.Info("catalogue certificate", attrs...)
	case catalogue.CertUnreachable:
		slog.Warn("catalogue unreachable at startup", attrs...)
		return
	default:
		slog.Warn("catalogue certificate needs attention", attrs...)
	}
	reg.SetCertDaysLeft(cs.DaysLeft)
}

// pruneHistory deletes history rows older than retention until ctx ends.
func pruneHistory(ctx context.Context, h *history.Store, retention time.Duration) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		if n, err := h.Prune(ctx, time.Now().Add(-retention)); err != nil {
			slog.Warn("history prune failed", "err", err)
		} else if n > 0 {
			slog.Info("history pruned", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
