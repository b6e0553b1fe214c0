package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensornet/registry/config"
	"github.com/sensornet/registry/internal/ingest"
	"github.com/sensornet/registry/internal/repository"
	"github.com/sensornet/registry/internal/repository/memory"
	"github.com/sensornet/registry/internal/repository/postgres"
	"github.com/sensornet/registry/internal/service"
	"github.com/sensornet/registry/internal/treasury"
	"github.com/sensornet/registry/internal/web"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store repository.Store
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool, cfg.Fees.Creation, cfg.Fees.Transmission); err != nil {
			logger.Error("failed to migrate database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = postgres.New(pool)
	case "memory":
		store = memory.New(cfg.Fees.Creation, cfg.Fees.Transmission)
	default:
		logger.Error("unknown storage driver", slog.String("driver", cfg.Storage.Driver))
		os.Exit(1)
	}

	var auth service.Authorizer = service.OpenAccess{}
	if cfg.Admin.Key != "" {
		auth = service.AdminKey(cfg.Admin.Key)
	} else {
		logger.Warn("no admin key configured, fee setters and pool withdrawal are open to any caller")
	}

	ledger := treasury.NewLedger(logger)
	svc := service.New(store, ledger, auth, logger)
	handler := web.NewHandler(svc, logger)
	server := web.NewServer(handler)

	if cfg.MQTT.BrokerURL != "" {
		bridge, err := ingest.NewBridge(ingest.Options{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, svc, logger)
		if err != nil {
			logger.Error("failed to start mqtt ingest", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := bridge.Start(); err != nil {
			logger.Error("failed to subscribe mqtt ingest", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer bridge.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", slog.String("error", err.Error()))
		}
	}()

	logger.Info(fmt.Sprintf("starting server on :%s", cfg.Server.Port))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
