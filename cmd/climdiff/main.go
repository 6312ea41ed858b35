package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/climdiff/climdiff/internal/catalogue"
	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/pipeline"
	"github.com/climdiff/climdiff/internal/telemetry"
	"github.com/climdiff/climdiff/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and CLIMDIFF_* environment variables")
	model := flag.String("model", "", "model identifier (see -list)")
	variable := flag.String("variable", "", "variable identifier (see -list)")
	outDir := flag.String("out", "", "output directory; overrides output.dir")
	list := flag.Bool("list", false, "print the available models and variables and exit")
	flag.Parse()

	if *list {
		printChoices()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	sel, err := types.ParseSelection(*model, *variable)
	if err != nil {
		slog.Error("invalid selection", "model", *model, "variable", *variable, "err", err)
		os.Exit(2)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer shutdown(context.Background()) //nolint:errcheck

	if cfg.Catalogue.Directory == "" {
		if cs := catalogue.CheckTLS(ctx, cfg.Catalogue); cs != nil {
			slog.Info("catalogue certificate",
				"endpoint", cs.Endpoint, "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer)
		}
	}

	cat, err := pipeline.NewCatalogue(cfg.Catalogue, nil)
	if err != nil {
		slog.Error("failed to build catalogue", "err", err)
		os.Exit(1)
	}

	slog.Info("climdiff starting",
		"model", sel.Model, "variable", sel.Variable,
		"historical_window", cfg.Windows.Historical.String(),
		"projection_window", cfg.Windows.Projection.String())

	res, err := pipeline.New(cfg, cat, nil).Run(ctx, sel)
	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	fig, data, err := res.WriteFiles(cfg.Output.Dir)
	if err != nil {
		slog.Error("failed to write outputs", "err", err)
		os.Exit(1)
	}
	slog.Info("outputs written",
		"figure", fig, "dataarray", data,
		"scale", res.Scale, "vmin", res.VMin, "vmax", res.VMax,
		"nan_cells", res.Stats.NaNCount, "inf_cells", res.Stats.InfCount,
		"duration", res.Duration)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func printChoices() {
	fmt.Println(types.ApplicationTitle)
	fmt.Println()
	fmt.Println("Models:")
	for _, c := range types.Models {
		fmt.Printf("  %-14s %s\n", c.Value, c.Label)
	}
	fmt.Println("Variables:")
	for _, c := range types.Variables {
		fmt.Printf("  %-24s %s\n", c.Value, c.Label)
	}
}
