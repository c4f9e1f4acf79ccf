// Command sieved serves the scoring API: it loads a reference library at
// startup, wires the configured similarity backend and tally cache, and
// exposes scoring, decomposition, health, and metrics over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/moleculab/synthon-sieve/internal/config"
	"github.com/moleculab/synthon-sieve/internal/domain/library"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/database/postgres"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/logging"
	"github.com/moleculab/synthon-sieve/internal/infrastructure/monitoring/prometheus"
	"github.com/moleculab/synthon-sieve/internal/interfaces/cli"
	httpiface "github.com/moleculab/synthon-sieve/internal/interfaces/http"
	"github.com/moleculab/synthon-sieve/pkg/errors"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: ./sieve.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "sieved: %s\n", err.Error())
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.NewLogger(logging.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		return err
	}
	log = log.Named("sieved")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := cli.NewEngine(cfg, log)
	if err != nil {
		return err
	}

	lib, err := loadServingLibrary(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("reference library loaded",
		logging.Int("entries", lib.Len()),
		logging.Bool("insufficient_sample", lib.InsufficientSample))

	counter, closeCounter, err := cli.NewCounter(ctx, cfg, lib, log)
	if err != nil {
		return err
	}
	if closeCounter != nil {
		defer func() { _ = closeCounter() }()
	}

	cache, closeCache, err := cli.NewTallyCache(ctx, cfg)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer func() { _ = closeCache() }()
	}

	metrics := prometheus.New()
	metrics.SetLibraryEntries(lib.Len())

	pipeline := cli.NewPipeline(cfg, engine, counter, lib, cache, metrics, "", log)
	handlers := httpiface.NewHandlers(engine, pipeline, log)
	server := httpiface.NewServer(cfg.Server, handlers, metrics.Handler(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})
	if configPath != "" {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, log, func(*config.Config) {
				// Library, backend, and cache wiring are fixed at startup.
				log.Warn("configuration changed on disk, restart to apply")
			})
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	log.Info("sieved stopped")
	return nil
}

// loadServingLibrary resolves the library the daemon scores against.
func loadServingLibrary(ctx context.Context, cfg *config.Config, log logging.Logger) (*library.Library, error) {
	switch {
	case cfg.Library.Path != "":
		return cli.LoadLibraryFile(cfg.Library.Path)
	case cfg.Library.StoreName != "":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return postgres.NewLibraryStore(pool, log).Load(ctx, cfg.Library.StoreName)
	}
	return nil, errors.New(errors.CodeInvalidParam,
		"no serving library configured: set library.path or library.store_name")
}
