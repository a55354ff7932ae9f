package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weatherlink-logger/internal/api/http"
	"github.com/i474232898/weatherlink-logger/internal/config"
	"github.com/i474232898/weatherlink-logger/internal/metrics"
	"github.com/i474232898/weatherlink-logger/internal/scheduler"
	"github.com/i474232898/weatherlink-logger/internal/weather"
)

const serviceName = "weatherlink-logger"

func serveCmd(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, _ []string) error {
	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	collector := metrics.NewCollector(true)

	// In-process scheduling is optional; the usual deployment runs `run` from cron.
	if cfg.ScheduleEnabled {
		if err := cfg.RequireWeatherLink(); err != nil {
			return err
		}
		svc := weather.NewService(newFetcher(cfg), st.data, st.health,
			weather.WithObserver(collector),
			weather.WithServiceLogger(log),
			weather.WithHealthTimeout(cfg.HealthTimeout),
		)
		sched := scheduler.New(svc, cfg.FetchInterval, cfg.CycleTimeout, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	app := newApp()
	httpapi.RegisterRoutes(app, weather.NewExplorer(st.data, st.health), collector.Handler())

	errCh := make(chan error, 1)
	go func() {
		log.Info("dashboard listening", "port", cfg.Port)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	// Wait for termination signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "err", err)
	}
	return nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	return app
}
