package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/i474232898/weatherlink-logger/internal/config"
	"github.com/i474232898/weatherlink-logger/internal/logging"
	"github.com/i474232898/weatherlink-logger/internal/metrics"
	"github.com/i474232898/weatherlink-logger/internal/plot"
	"github.com/i474232898/weatherlink-logger/internal/store"
	"github.com/i474232898/weatherlink-logger/internal/weather"
	"github.com/i474232898/weatherlink-logger/internal/weather/providers"
)

var version = "dev"

const usage = `usage: weatherlink-logger <command> [flags]

commands:
  run [-dry-run]      run one ingestion cycle and exit
  serve               serve the dashboard (and schedule cycles if SCHEDULE_ENABLED=true)
  plot [-window 12h]  chart recent readings in the terminal
  migrate             apply schema migrations
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		fmt.Print(usage)
		return
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		AppEnv:  cfg.AppEnv,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Version: version,

		MaxBackups: cfg.LogMaxBackups,
		MaxSizeMB:  cfg.LogMaxSizeMB,
	})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	slog.SetDefault(logger)
	logger.Info("logger started", "command", cmd, "log_file", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	switch cmd {
	case "run":
		err = runCmd(ctx, cfg, logger, args)
	case "serve":
		err = serveCmd(ctx, cfg, logger, args)
	case "plot":
		err = plotCmd(ctx, cfg, logger, args)
	case "migrate":
		err = store.Migrate(cfg.DB, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		err = errUsage
	}
	stop()

	if cerr := closeLog(); cerr != nil {
		log.Printf("close log file: %v", cerr)
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			logger.Error("command failed", "command", cmd, "err", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// stores bundles the data-path store and the health repository, each on its
// own connection pool.
type stores struct {
	data   *store.SQLStore
	health *store.HealthRepository
	close  func()
}

func openStores(cfg *config.AppConfig, logger *slog.Logger) (*stores, error) {
	if cfg.AutoMigrate {
		if err := store.Migrate(cfg.DB, logger); err != nil {
			return nil, err
		}
	}

	dataDB, err := store.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	healthCfg := cfg.DB
	healthCfg.MaxOpenConns = 1
	healthDB, err := store.Open(healthCfg)
	if err != nil {
		_ = dataDB.Close()
		return nil, err
	}

	closeAll := func() {
		if err := dataDB.Close(); err != nil {
			logger.Warn("close data connection", "err", err)
		}
		if err := healthDB.Close(); err != nil {
			logger.Warn("close health connection", "err", err)
		}
	}

	data, err := store.NewSQLStore(dataDB, cfg.DB.Driver)
	if err != nil {
		closeAll()
		return nil, err
	}
	health, err := store.NewHealthRepository(healthDB, cfg.DB.Driver)
	if err != nil {
		closeAll()
		return nil, err
	}
	return &stores{data: data, health: health, close: closeAll}, nil
}

func newFetcher(cfg *config.AppConfig) *providers.WeatherLinkProvider {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	return providers.NewWeatherLinkProvider(httpClient, providers.WeatherLinkSettings{
		BaseURL:    cfg.WeatherLink.BaseURL,
		APIKey:     cfg.WeatherLink.APIKey,
		APISecret:  cfg.WeatherLink.APISecret,
		StationID:  cfg.WeatherLink.StationID,
		MaxRetries: cfg.WeatherLink.MaxRetries,
	})
}

// runCmd runs a single cycle. A failed cycle is still a successful run: the
// outcome is in the health summary and the log.
func runCmd(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "keep everything in memory and print the health summary")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := cfg.RequireWeatherLink(); err != nil {
		return err
	}

	var (
		db     weather.Database
		health weather.HealthRecorder
	)
	if *dryRun {
		mem := store.NewMemoryStore(0)
		db, health = mem, mem
	} else {
		st, err := openStores(cfg, logger)
		if err != nil {
			return err
		}
		defer st.close()
		db, health = st.data, st.health
	}

	collector := metrics.NewCollector(false)
	svc := weather.NewService(newFetcher(cfg), db, health,
		weather.WithObserver(collector),
		weather.WithServiceLogger(logger),
		weather.WithHealthTimeout(cfg.HealthTimeout),
	)

	cycleCtx, cancel := context.WithTimeout(ctx, cfg.CycleTimeout)
	defer cancel()
	summary := svc.RunCycle(cycleCtx)

	if cfg.MetricsTextfile != "" {
		if err := collector.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "err", err)
		}
	}

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return nil
}

func plotCmd(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	window := fs.Duration("window", cfg.PlotWindow, "how far back to plot")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	return plot.Render(ctx, os.Stdout, weather.NewExplorer(st.data, st.health), plot.Options{
		Window:   *window,
		Location: cfg.LocalTimezone,
		Color:    true,
		Now:      time.Now,
	})
}
