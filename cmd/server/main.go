// Command main is the entry point for the Lectern backend server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lectern/internal/bootstrap"
	"lectern/internal/config"
	"lectern/internal/middleware"
	"lectern/internal/observability"
	"lectern/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title Lectern API
// @version 1.0
// @description Video course platform API: catalog, streaming, access requests and administration
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@lectern.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger := middleware.SetupLogger(cfg.Env, os.Stdout)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfigFrom(cfg, version))
	if err != nil {
		logger.Error("failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		logger.Error("failed to initialize runtime", slog.Any("error", err))
		os.Exit(1)
	}

	srv, err := server.NewServer(cfg, server.Deps{
		DB:        rt.DB,
		Redis:     rt.Redis,
		Store:     rt.Store,
		Publisher: rt.Publisher,
		Mailer:    rt.Mailer,
	})
	if err != nil {
		logger.Error("failed to create server", slog.Any("error", err))
		os.Exit(1)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracing shutdown error", slog.Any("error", err))
		}
		if err := rt.Close(); err != nil {
			logger.Error("resource shutdown error", slog.Any("error", err))
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
