package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stock-analyzer-api/internal/config"
	"stock-analyzer-api/internal/handlers"
	"stock-analyzer-api/internal/scheduler"
	"stock-analyzer-api/internal/services"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Prices go out as JSON numbers for chart clients.
	decimal.MarshalJSONWithoutQuotes = true

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	remote, err := services.NewRemoteStore(ctx, cfg)
	if err != nil {
		log.Printf("[WARN] remote cache unavailable, using memory only: %v", err)
		remote = nil
	}
	cacheService := services.NewCacheService(cfg, remote)
	defer cacheService.Close()

	marketDataService := services.NewMarketDataService(cfg, cacheService)
	forecastOrchestrator := services.NewForecastOrchestrator(cfg, marketDataService)

	sched := scheduler.NewScheduler(ctx, cacheService, forecastOrchestrator, cfg.Watchlist.Symbols)
	if err := sched.RegisterAll(cfg.Cache.PurgeCron, cfg.Watchlist.Cron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	go sched.RunWarmNow()

	// Initialize handlers
	forecastHandler := handlers.NewForecastHandler(forecastOrchestrator, cfg.Server.RequestTimeout)
	healthHandler := handlers.NewHealthHandler(forecastOrchestrator, version)

	app := fiber.New(fiber.Config{
		StrictRouting: true,
		CaseSensitive: true,
		ServerHeader:  "Stock-Analyzer-API",
		AppName:       "Stock Analyzer v" + version,
		ReadTimeout:   time.Second * 10,
		WriteTimeout:  time.Second * 20,
		BodyLimit:     1 * 1024 * 1024, // 1MB
		ErrorHandler:  handlers.CustomErrorHandler,
	})

	// Middleware stack
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       3600,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimit,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	handlers.Register(app, forecastHandler, healthHandler)

	// Graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("[FATAL] failed to start server: %v", err)
		}
	}()

	log.Printf("[INFO] stock analyzer API started on port %s", cfg.Port)
	log.Printf("[INFO] environment: %s, cache: %s", cfg.Environment, cacheService.Backend())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("[INFO] shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Fatalf("[FATAL] server forced to shutdown: %v", err)
	}

	log.Println("[INFO] server shutdown complete")
}
