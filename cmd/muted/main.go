package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"mute-schedule-backend/config"
	"mute-schedule-backend/internal/action"
	"mute-schedule-backend/internal/api"
	"mute-schedule-backend/internal/calendar"
	"mute-schedule-backend/internal/db"
	"mute-schedule-backend/internal/heartbeat"
	"mute-schedule-backend/internal/notification"
	"mute-schedule-backend/internal/reconciler"
	"mute-schedule-backend/internal/schedule"
	"mute-schedule-backend/internal/store"
)

func main() {
	logger := log.New(os.Stdout, "muted ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Build and validate the schedule index before touching anything else.
	index, err := schedule.BuildIndex(&cfg.Schedule)
	if err != nil {
		logger.Fatalf("invalid schedule configuration: %v", err)
	}
	holder := schedule.NewHolder(index)
	logger.Printf("schedule index built: %d entity policies", len(index.Policies()))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Calendar resolver (offline/online/hybrid is fixed here for the
	// process lifetime).
	resolver := calendar.NewResolver(&cfg.Calendar)
	logger.Printf("calendar resolver initialized in %s mode", resolver.Method())

	// Action backends, attempted in config order.
	backends := make([]action.Backend, 0, len(cfg.Action.Backends))
	for _, bc := range cfg.Action.Backends {
		backends = append(backends, action.NewHTTPBackend(bc))
	}
	if len(backends) == 0 {
		logger.Println("Warning: no action backends configured; every transition will fail until one is added")
	}
	multi := action.NewMulti(backends...)

	// Operator push notifications are optional.
	var dispatcher reconciler.Dispatcher
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		dispatcher = pool
	} else {
		logger.Println("VAPID keys are not configured; operator push notifications disabled")
	}

	rec := reconciler.New(appStore, multi, dispatcher)

	driver, err := heartbeat.New(cfg.Heartbeat, holder, resolver, rec)
	if err != nil {
		logger.Fatalf("failed to initialize heartbeat driver: %v", err)
	}
	go driver.Run(ctx)

	// SIGHUP reloads the schedule configuration and swaps the index
	// atomically; an in-flight tick finishes on the old snapshot.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			fresh, err := config.Load(configPath)
			if err != nil {
				logger.Printf("reload: failed to load configuration: %v", err)
				continue
			}
			ix, err := schedule.BuildIndex(&fresh.Schedule)
			if err != nil {
				logger.Printf("reload: invalid schedule configuration, keeping current index: %v", err)
				continue
			}
			holder.Swap(ix)
			logger.Printf("reload: schedule index swapped, %d entity policies", len(ix.Policies()))
		}
	}()

	// HTTP surface
	handler := api.NewHandler(appStore, driver, resolver, webpushOptions)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
