package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casedesk/internal/api"
	"casedesk/internal/audit"
	"casedesk/internal/authorization"
	"casedesk/internal/cache"
	"casedesk/internal/config"
	"casedesk/internal/daemon"
	"casedesk/internal/database"
	"casedesk/internal/database/migrations"
	"casedesk/internal/group"
	"casedesk/internal/middleware"
	"casedesk/internal/organisation"
	"casedesk/internal/telemetry"
	"casedesk/internal/user"
	"casedesk/internal/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/postgres/v3"
)

func main() {
	if err := run(context.Background()); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	cfg := config.NewConfig()

	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			fmt.Println("Telemetry shutdown error:", err)
		}
	}()

	logger := tel.Logger()

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.DatabaseURL()); err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	if err := migrations.Up(cfg.DatabaseURL()); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		return err
	}

	var lookupCache *cache.Cache
	if cfg.Redis.Enabled {
		lookupCache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.LookupTTL)
		if err := lookupCache.Ping(ctx); err != nil {
			logger.Error("Failed to connect to redis", "error", err)
			return err
		}
		defer lookupCache.Close()
	}

	validate := validator.New()
	authorizer := authorization.NewAuthorizer(cfg.Auth.Mode)
	auditor := audit.NewAuditor(logger, &db)

	userManager := user.NewManager(logger, &db, validate, &auditor, lookupCache)
	groupManager := group.NewManager(logger, &db, validate, &auditor)
	organisationManager := organisation.NewManager(logger, &db, validate, &auditor)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(middleware.Logger(logger))
	if tel.IsEnabled() {
		app.Use(telemetry.FiberMiddleware(cfg.Telemetry.ServiceName))
	}
	if cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.Max,
			Expiration: cfg.RateLimit.Expiration,
			Storage: postgres.New(postgres.Config{
				ConnectionURI: cfg.DatabaseURL(),
				Table:         "tbl_rate_limit",
			}),
		}))
	}

	handler := api.NewHandler(logger, userManager, groupManager, organisationManager, &authorizer, &db)
	handler.RegisterRoutes(app, &db)

	daemons := daemon.NewDaemonManager(logger)
	daemons.Add("audit_retention", daemon.AuditRetentionTask(&db, logger, cfg.Audit.Retention, cfg.Audit.PurgeInterval))
	daemons.Start(ctx)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Starting HTTP server...", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("Server stopped", "error", err)
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error shutting down", "error", err)
	}
	cancel()
	daemons.Wait()
	logger.Info("Shutdown complete")

	return nil
}
