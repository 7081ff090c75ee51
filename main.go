// Package main provides the entry point of the Kargo freight forwarding API
//
// @title Kargo API
// @version 1.0
// @description Freight forwarding backend: quotes, pickups, purchases, shipments and public tracking.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/kargo/app/handlers"
	"github.com/amirphl/kargo/app/middleware"
	"github.com/amirphl/kargo/app/router"
	"github.com/amirphl/kargo/app/scheduler"
	"github.com/amirphl/kargo/app/services"
	businessflow "github.com/amirphl/kargo/business_flow"
	"github.com/amirphl/kargo/config"
	"github.com/amirphl/kargo/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
	closers   []io.Closer
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter, logCloser := initializeLogging(cfg.Logging)
	log.Println("Starting Kargo application...")

	app, err := initializeApplication(cfg, logWriter)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	if logCloser != nil {
		app.closers = append(app.closers, logCloser)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := cfg.Server.Address()
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers before the server so no job runs against a closing pool
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			log.Printf("Error closing resource: %v", err)
		}
	}

	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout, a rotating file, or both
func initializeLogging(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	log.SetFlags(0)
	if cfg.Output == "stdout" {
		log.SetOutput(os.Stdout)
		return os.Stdout, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  false,
	}

	var w io.Writer = file
	if cfg.Output == "both" {
		w = io.MultiWriter(os.Stdout, file)
	}
	log.SetOutput(w)
	return w, file
}

// gormLogLevel maps LOG_LEVEL onto the ORM logger; debug also traces every statement
func gormLogLevel(cfg config.LoggingConfig) gormlogger.LogLevel {
	switch {
	case cfg.Allows("debug"):
		return gormlogger.Info
	case cfg.Allows("warn"):
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logging config.LoggingConfig, logWriter io.Writer) (*gorm.DB, error) {
	var slowThreshold time.Duration
	if cfg.SlowQueryLog {
		slowThreshold = cfg.SlowQueryTime
	}
	gormCfg := &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger: gormlogger.New(log.New(logWriter, "", 0), gormlogger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  gormLogLevel(logging),
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client disables the pricing cache and keeps captcha challenges in memory.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis so connectivity loss shows up in the logs.
// The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks real or mock providers per channel behind circuit breakers
func initializeNotificationService(cfg *config.ProductionConfig) services.NotificationService {
	var smsProvider services.SMSProvider
	if cfg.SMS.IsMock() {
		smsProvider = services.NewMockSMSProvider()
	} else {
		smsProvider = services.NewHTTPSMSProvider(&cfg.SMS)
	}

	var emailProvider services.EmailProvider
	if cfg.Email.IsMock() {
		emailProvider = services.NewMockEmailProvider()
	} else {
		emailProvider = services.NewSMTPEmailProvider(
			cfg.Email.Host, cfg.Email.Port,
			cfg.Email.Username, cfg.Email.Password,
			cfg.Email.FromEmail, cfg.Email.FromName,
		)
	}

	breaker := cfg.Business.NotificationBreaker
	return services.NewNotificationService(smsProvider, emailProvider, services.BreakerSettings{
		FailureThreshold: uint32(breaker.FailureThreshold),
		OpenTimeout:      breaker.OpenTimeout,
		Interval:         breaker.Interval,
	})
}

func initializeCaptchaService(cfg config.CaptchaConfig, rc *redis.Client) (services.CaptchaService, error) {
	var store services.ChallengeStore
	if rc != nil {
		store = services.NewRedisChallengeStore(rc)
	} else {
		log.Println("Captcha challenges kept in memory; guest submissions must hit the same instance")
		store = services.NewMemoryChallengeStore()
	}
	return services.NewCaptchaServiceRotate(store, cfg.ChallengeTTL, cfg.Padding, cfg.ImageSize)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logWriter io.Writer) (*Application, error) {
	var stopFuncs []func()
	var closers []io.Closer

	db, err := initializeDatabase(cfg.Database, cfg.Logging, logWriter)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	closers = append(closers, sqlDB)

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	probes := map[string]router.HealthProbe{
		"database": sqlDB.PingContext,
	}
	if rc != nil {
		closers = append(closers, rc)
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthCheckInterval))
		probes["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	prospectRepo := repository.NewProspectRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	pickupRepo := repository.NewPickupRequestRepository(db)
	purchaseRepo := repository.NewPurchaseRequestRepository(db)
	shipmentRepo := repository.NewShipmentRepository(db)
	eventRepo := repository.NewTrackingEventRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	pricingRepo := repository.NewPricingConfigRepository(db)
	rateRepo := repository.NewTransportRateRepository(db)
	counterRepo := repository.NewSequenceCounterRepository(db)

	// Services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.GuestTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	captchaService, err := initializeCaptchaService(cfg.Captcha, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize captcha service: %w", err)
	}
	notificationService := initializeNotificationService(cfg)
	sequence := businessflow.NewSequenceGenerator(counterRepo)

	// Business flows
	pricingFlow := businessflow.NewPricingConfigFlow(pricingRepo, auditRepo, db, rc, &cfg.Cache)
	rateFlow := businessflow.NewTransportRateFlow(rateRepo, auditRepo, db)
	quoteFlow := businessflow.NewQuoteFlow(
		quoteRepo, shipmentRepo, rateRepo, historyRepo, auditRepo, userRepo,
		pricingFlow, sequence, notificationService, db, cfg.Business.QuoteValidity,
	)
	pickupFlow := businessflow.NewPickupRequestFlow(pickupRepo, historyRepo, sequence, notificationService, db)
	purchaseFlow := businessflow.NewPurchaseRequestFlow(
		purchaseRepo, historyRepo, sequence, notificationService, db,
		businessflow.PurchaseFeePolicy{
			Rate:  cfg.Business.PurchaseServiceFeeRate,
			Floor: cfg.Business.PurchaseServiceFeeFloor,
		},
		cfg.Business.Currency,
	)
	shipmentFlow := businessflow.NewShipmentFlow(shipmentRepo, eventRepo, quoteRepo, historyRepo, auditRepo, userRepo, notificationService, db)
	trackingFlow := businessflow.NewTrackingFlow(shipmentRepo, eventRepo)
	prospectFlow := businessflow.NewProspectFlow(
		prospectRepo, pickupRepo, purchaseRepo, userRepo, historyRepo, auditRepo,
		sequence, captchaService, tokenService, notificationService, db,
		cfg.Business.Currency, cfg.Business.InvitationTTL, cfg.Deployment.PortalURL(),
	)
	userFlow := businessflow.NewUserFlow(userRepo, prospectRepo, pickupRepo, purchaseRepo, auditRepo, tokenService, db)

	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := userFlow.EnsureBootstrapAdmin(ctx, cfg.Admin.Email, cfg.Admin.FullName)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to ensure bootstrap admin: %w", err)
		}
		if created {
			log.Printf("Bootstrap admin %s created", cfg.Admin.Email)
		}
	}

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	appRouter := router.NewFiberRouter(
		cfg,
		logWriter,
		probes,
		authMiddleware,
		handlers.NewAuthHandler(userFlow),
		handlers.NewQuoteHandler(quoteFlow),
		handlers.NewPickupRequestHandler(pickupFlow),
		handlers.NewPurchaseRequestHandler(purchaseFlow),
		handlers.NewShipmentHandler(shipmentFlow),
		handlers.NewTrackingHandler(trackingFlow),
		handlers.NewGuestHandler(prospectFlow),
		handlers.NewAdminPricingHandler(pricingFlow, rateFlow),
		handlers.NewAdminUserHandler(userFlow, prospectFlow),
	)

	if cfg.Scheduler.QuoteExpiryEnabled {
		sched := scheduler.NewQuoteExpiryScheduler(
			quoteFlow,
			log.New(logWriter, "scheduler ", log.LstdFlags|log.LUTC),
			cfg.Scheduler.QuoteExpiryInterval,
			cfg.Scheduler.QuoteExpiryBatch,
		)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}
