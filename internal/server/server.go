package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/tiendaweb/tienda-backend/config"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"github.com/tiendaweb/tienda-backend/pkg/redis"
)

// ShutdownTimeout bounds the whole graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Bootstrap loads configuration, initializes the logger for service and
// connects the database. Redis is connected when enabled; redisReady reports
// whether it is usable.
func Bootstrap(service string) (cfg *config.Config, redisReady bool) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logLevel := "info"
	format := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		format = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      format,
		Service:     service,
		EnableColor: true,
	})

	logger.Info("Starting service", map[string]interface{}{
		"service":     service,
		"environment": cfg.Server.Environment,
		"log_level":   logLevel,
	})

	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}

	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, continuing without it", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			redisReady = true
		}
	}

	return cfg, redisReady
}

// Step is one named stage of the shutdown sequence.
type Step struct {
	Name string
	Op   gfshutdown.Operation
}

// Run serves engine on port until SIGINT/SIGTERM, then shuts down in order:
// the HTTP server drains first, then extra runs, then Redis and the database
// close. It exits with the resulting code.
func Run(engine *gin.Engine, port string, extra ...Step) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	steps := []Step{{Name: "http-server", Op: srv.Shutdown}}
	steps = append(steps, extra...)
	steps = append(steps,
		Step{Name: "redis", Op: func(ctx context.Context) error { return redis.Close() }},
		Step{Name: "database", Op: func(ctx context.Context) error { return db.Close() }},
	)

	// gfshutdown runs its operations concurrently, so the ordered sequence is
	// handed over as a single operation.
	wait := gfshutdown.GracefulShutdown(context.Background(), ShutdownTimeout, map[string]gfshutdown.Operation{
		"tienda": func(ctx context.Context) error {
			return Shutdown(ctx, steps)
		},
	})
	exitCode := <-wait
	logger.Info("Server stopped", map[string]interface{}{
		"exit_code": exitCode,
	})
	os.Exit(exitCode)
}

// Shutdown runs steps one after another. A failing step is logged and does not
// stop the ones after it; all failures are returned joined.
func Shutdown(ctx context.Context, steps []Step) error {
	var errs []error
	for _, step := range steps {
		logger.Info("Shutting down", map[string]interface{}{
			"step": step.Name,
		})
		if err := step.Op(ctx); err != nil {
			logger.Error("Shutdown step failed", err, map[string]interface{}{
				"step": step.Name,
			})
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}
