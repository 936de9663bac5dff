package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"

	"home-sensor-backend/config"
	"home-sensor-backend/internal/api"
	"home-sensor-backend/internal/db"
	"home-sensor-backend/internal/hub"
	"home-sensor-backend/internal/ingest"
	"home-sensor-backend/internal/mailbox"
	"home-sensor-backend/internal/metrics"
	"home-sensor-backend/internal/model"
	"home-sensor-backend/internal/mqttingest"
	"home-sensor-backend/internal/mw"
	"home-sensor-backend/internal/notification"
	"home-sensor-backend/internal/roomstate"
	"home-sensor-backend/internal/sensor"
	"home-sensor-backend/internal/store"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.DateTime})))

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("failed to load configuration", "path", configPath, "err", err)
	}
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Warn("invalid log level, using info", "level", cfg.Log.Level)
	}
	slog.Info("configuration loaded", "path", configPath)

	rule, err := sensor.ParseStatusRule(cfg.Classifier.StatusRule)
	if err != nil {
		fatal("invalid classifier configuration", "err", err)
	}
	policy, err := ingest.ParseUnknownRoomPolicy(cfg.Ingest.UnknownRoomPolicy)
	if err != nil {
		fatal("invalid ingest configuration", "err", err)
	}

	metrics.Init()

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		fatal("failed to initialize database", "err", err)
	}
	slog.Info("database initialized", "driver", cfg.Database.Driver)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if cfg.Database.SeedRooms {
		if err := appStore.SeedRooms(ctx, append([]model.Room(nil), model.DefaultRooms...)); err != nil {
			fatal("failed to seed rooms", "err", err)
		}
	}

	rooms := roomstate.NewStore()
	persisted, err := appStore.GetAllRooms(ctx)
	if err != nil {
		fatal("failed to load rooms", "err", err)
	}
	for _, r := range persisted {
		rooms.Register(r.ID, r.Name, r.Location, r.IsActive)
	}
	slog.Info("room state loaded", "rooms", len(persisted), "status_rule", rule, "unknown_room_policy", policy)

	liveHub := hub.New(cfg.Server.AllowedOrigins)
	go liveHub.Run(ctx)

	opts := []ingest.Option{ingest.WithPublisher(liveHub)}

	var senders []notification.Sender
	if cfg.Ntfy.Enabled {
		senders = append(senders, notification.NewNtfySender(cfg.Ntfy.URL, cfg.Ntfy.Topic, cfg.Ntfy.Token, cfg.Ntfy.Timeout))
	}
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		senders = append(senders, notification.NewWebPushSender(appStore, webpushOptions))
	} else {
		slog.Warn("VAPID keys are not configured; browser push is disabled")
	}

	var pool *notification.WorkerPool
	if len(senders) > 0 {
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.Queue, notification.NewMultiSender(senders...))
		pool.Start(ctx)
		opts = append(opts, ingest.WithDispatcher(pool))
		slog.Info("notification workers started", "workers", cfg.WorkerPool.Size, "channels", len(senders))
	} else {
		slog.Warn("no notification channel configured; alerts are recorded only")
	}

	var responseCache *mw.ResponseCache
	if cfg.Server.CacheTTLSeconds > 0 {
		responseCache = mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
		opts = append(opts, ingest.WithInvalidator(responseCache))
	}

	coordinator := ingest.NewCoordinator(sensor.NewClassifier(rule), rooms, appStore, policy, opts...)

	if cfg.MQTT.Enabled {
		sub, err := mqttingest.New(cfg.MQTT, coordinator)
		if err != nil {
			fatal("invalid mqtt configuration", "err", err)
		}
		go sub.Run(ctx)
	}

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go evictIdleClients(ctx, limiter)

	// Initialize router
	handler := api.NewHandler(appStore, rooms, mailbox.New(), coordinator, webpushOptions)
	router := api.NewRouter(handler, liveHub, api.RouterConfig{
		Limiter:       limiter,
		Cache:         responseCache,
		ControlSecret: cfg.Server.ControlJWTSecret,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		slog.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("HTTP server ListenAndServe", "err", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	slog.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutMS)*time.Millisecond)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server Shutdown", "err", err)
	}
	cancel()
	if pool != nil {
		pool.Wait()
	}

	slog.Info("server gracefully stopped")
}

func evictIdleClients(ctx context.Context, limiter *mw.IPRateLimiter) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Evict(limiterIdleTimeout); n > 0 {
				slog.Debug("evicted idle rate limit entries", "count", n)
			}
		}
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
