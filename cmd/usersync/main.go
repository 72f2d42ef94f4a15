package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valinor-ai/usersync/internal/audit"
	"github.com/valinor-ai/usersync/internal/platform/config"
	"github.com/valinor-ai/usersync/internal/platform/database"
	"github.com/valinor-ai/usersync/internal/platform/server"
	"github.com/valinor-ai/usersync/internal/platform/telemetry"
	"github.com/valinor-ai/usersync/internal/users"
	"github.com/valinor-ai/usersync/internal/webhook"
	"golang.org/x/sync/errgroup"
)

const auditDropReportInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Setup logging
	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("usersync starting",
		"version", "0.1.0",
		"port", cfg.Server.Port,
	)

	// Webhook verification
	verifier, err := webhook.NewSvixVerifier(cfg.Webhook.SigningSecret)
	if err != nil {
		return fmt.Errorf("configuring webhook verifier: %w", err)
	}

	ctx := context.Background()

	slog.Info("connecting to database")
	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
	if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("migrations complete")

	// Audit
	auditLogger := buildAuditLogger(pool, cfg.Audit, logger)
	defer auditLogger.Close()

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		Verifier:     verifier,
		Store:        users.NewStore(pool),
		Audit:        auditLogger,
		Logger:       logger,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:           pool,
		WebhookHandler: webhookHandler,
		Logger:         logger,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if counter, ok := auditLogger.(droppedCounter); ok {
		g.Go(func() error {
			reportAuditDrops(gctx, logger, counter, auditDropReportInterval)
			return nil
		})
	}

	return g.Wait()
}

func buildAuditLogger(db database.Querier, cfg config.AuditConfig, logger *slog.Logger) audit.Logger {
	if !cfg.Enabled {
		slog.Info("audit logging disabled")
		return audit.NopLogger{}
	}
	l := audit.NewAsyncLogger(db, audit.NewStore(), audit.LoggerConfig{
		BufferSize:    cfg.BufferSize,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushInterval) * time.Millisecond,
		Logger:        logger,
	})
	slog.Info("audit logger started")
	return l
}

type droppedCounter interface {
	Dropped() int64
}

// reportAuditDrops logs the running total of dropped audit events whenever it grows.
func reportAuditDrops(ctx context.Context, logger *slog.Logger, counter droppedCounter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := counter.Dropped(); n > last {
				logger.Warn("audit events dropped", "total", n, "since_last", n-last)
				last = n
			}
		}
	}
}
