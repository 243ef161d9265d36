package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alumni-ledger/internal/adapters/cache"
	"alumni-ledger/internal/adapters/http/handlers"
	"alumni-ledger/internal/adapters/http/middleware"
	"alumni-ledger/internal/adapters/http/routes"
	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/config"
	"alumni-ledger/internal/core/services"
	"alumni-ledger/internal/pkg/logger"
	"alumni-ledger/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	_ "alumni-ledger/docs" // Swagger docs
)

// @title Alumni Ledger API
// @version 1.0
// @description Financial administration for an alumni association: dues, loans, payments and reports.

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if !cfg.EnvFileLoaded {
		zlog.Info("no .env file found, using environment variables")
	}

	db, err := config.ConnectDatabase(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer config.CloseDatabase(db) //nolint:errcheck

	if err := models.AutoMigrate(db); err != nil {
		zlog.Fatal("failed to auto migrate", zap.Error(err))
	}
	zlog.Info("database migration completed")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		zlog.Fatal("failed to register metrics", zap.Error(err))
	}

	// Repositories
	tx := repositories.NewTransactor(db)
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	ledgerRepo := repositories.NewLedgerEntryRepository(db)
	dueRepo := repositories.NewDueRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	reportRepo := repositories.NewReportRepository(db)

	dashboardCache, cachePinger := buildCache(cfg, zlog)

	// Services
	ledger := services.NewMemberLedgerService(tx, memberRepo, ledgerRepo)
	authService := services.NewAuthService(tx, userRepo, refreshTokenRepo, memberRepo, cfg.JWT, zlog)
	userService := services.NewUserService(tx, userRepo, memberRepo, refreshTokenRepo, ledger, zlog)
	dueService := services.NewDueService(tx, dueRepo, userRepo, memberRepo, ledger, recorder, zlog)
	loanService := services.NewLoanService(tx, loanRepo, ledger, cfg.Ledger.LoanMinAmount, recorder, zlog)
	paymentService := services.NewPaymentService(tx, paymentRepo, userRepo, loanRepo, ledger, recorder, zlog)
	reportService := services.NewReportService(reportRepo, dueRepo, loanRepo, paymentRepo, memberRepo, zlog)
	dashboardService := services.NewDashboardService(memberRepo, userRepo, dueRepo, loanRepo, paymentRepo, dashboardCache, cfg.Redis.CacheTTL, zlog)

	if err := config.NewSeeder(cfg.Seed, authService, zlog).Run(context.Background()); err != nil {
		zlog.Warn("failed to seed superadmin", zap.Error(err))
	}

	cronService, err := services.NewCronService(cfg.Cron, authService, reportService, recorder, zlog)
	if err != nil {
		zlog.Fatal("failed to schedule jobs", zap.Error(err))
	}
	cronService.Start()

	app := fiber.New(fiber.Config{
		AppName:      "Alumni Ledger API v1.0",
		ErrorHandler: middleware.CustomErrorHandler(zlog),
	})

	middleware.Setup(app, cfg, zlog, recorder)

	routes.Setup(app, routes.Handlers{
		Health:    handlers.NewHealthHandler(db, cachePinger, cfg.AppMode),
		Auth:      handlers.NewAuthHandler(authService, cfg, zlog),
		User:      handlers.NewUserHandler(userService, zlog),
		Due:       handlers.NewDueHandler(dueService, zlog),
		Loan:      handlers.NewLoanHandler(loanService, zlog),
		Payment:   handlers.NewPaymentHandler(paymentService, zlog),
		Report:    handlers.NewReportHandler(reportService, zlog),
		Dashboard: handlers.NewDashboardHandler(dashboardService, zlog),
		Tokens:    authService,
		Gatherer:  registry,
	})

	go gracefulShutdown(app, cronService, zlog)

	zlog.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}

// buildCache connects to Redis when configured. The dashboard falls back to
// an uncached store when Redis is absent or unreachable.
func buildCache(cfg *config.Config, zlog *zap.Logger) (services.Cache, handlers.Pinger) {
	if cfg.Redis.URL == "" {
		return cache.Nop{}, nil
	}

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		zlog.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		return cache.Nop{}, nil
	}

	redis := cache.NewRedis(client, "alumni-ledger:")
	return redis, redis
}

// gracefulShutdown stops the scheduler and the server on SIGINT or SIGTERM
func gracefulShutdown(app *fiber.App, cronService *services.CronService, zlog *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cronService.Stop(ctx)

	if err := app.ShutdownWithContext(ctx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	zlog.Info("server stopped gracefully")
}
