package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanushsahu-fisrt/ventApp/config"
	"github.com/tanushsahu-fisrt/ventApp/handlers"
	_ "github.com/tanushsahu-fisrt/ventApp/migrations"
	"github.com/tanushsahu-fisrt/ventApp/monitoring"
	"github.com/tanushsahu-fisrt/ventApp/rtc"
	"github.com/tanushsahu-fisrt/ventApp/security"
	"github.com/tanushsahu-fisrt/ventApp/services"
	"github.com/tanushsahu-fisrt/ventApp/store"
	"github.com/tanushsahu-fisrt/ventApp/utils"
)

func main() {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize realtime notifications
	notifier := services.NewNotifier(cfg)

	// Initialize services
	st := store.NewPocketBase(app)
	queueService := services.NewQueueService(st, redisClient, cfg)
	tokens := rtc.NewTokenClient(cfg.TokenServiceURL, cfg.TokenRequestTimeout)
	registry := rtc.NewRegistry(func() (rtc.Engine, error) {
		return rtc.NewWebRTCEngine(cfg.RtcGatewayURL), nil
	}, cfg.EngineReleaseGrace)
	sessionService := services.NewSessionService(st, notifier, tokens, registry, cfg)
	matchingService := services.NewMatchingService(queueService, sessionService, cfg)
	roomService := services.NewRoomService(st, notifier, cfg)
	limiter := security.NewRateLimiter(redisClient, cfg.EnqueueRateLimit, cfg.EnqueueRateWindow)

	// Wire metrics
	if cfg.EnableMetrics {
		monitor := monitoring.NewMonitor(queueService)
		matchingService.OnMatchEvent = monitor.TrackMatchOperation
		sessionService.OnSessionEnded = monitor.TrackSessionEnd
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background tasks
	go runStaleCleanup(ctx, queueService, cfg)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		handlers.Register(se, handlers.Deps{
			Queue:    queueService,
			Matching: matchingService,
			Rooms:    roomService,
			Sessions: sessionService,
			Notifier: notifier,
			Limiter:  limiter,
		})

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			if err := queueService.Ping(e.Request.Context()); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		if cfg.EnableMetrics {
			go serveMetrics(cfg.MetricsPort)
		}

		return se.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// runStaleCleanup periodically removes waiting entries abandoned by
// crashed clients.
func runStaleCleanup(ctx context.Context, queueService *services.QueueService, cfg *config.Config) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := queueService.CleanupStale(ctx, cfg.StaleEntryMaxAge); err != nil {
				log.Printf("Stale queue cleanup failed: %v", err)
			}
		}
	}
}

// serveMetrics runs the Prometheus endpoint on its own port, away from
// the public API.
func serveMetrics(port string) {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}

	log.Printf("Metrics listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
