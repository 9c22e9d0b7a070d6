package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vaxtrack/internal/cache"
	"vaxtrack/internal/calendar"
	"vaxtrack/internal/clock"
	"vaxtrack/internal/config"
	"vaxtrack/internal/database"
	httpapi "vaxtrack/internal/http"
	"vaxtrack/internal/logger"
	"vaxtrack/internal/mqtt"
	"vaxtrack/internal/redis"
	"vaxtrack/internal/reminder"
	"vaxtrack/internal/service"
	"vaxtrack/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "vaxtrack")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV 后端（记录存储与日历缓存共用）
	var (
		kv          store.KV
		redisClient *redis.Client
		db          *sql.DB
	)
	switch cfg.StoreBackend {
	case config.StoreMemory:
		kv = store.NewMemoryKV()
		log.Warn("Using in-memory store, data is lost on restart")
	case config.StorePostgres:
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		pg := store.NewPostgresKV(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal("Failed to prepare kv schema", zap.Error(err))
		}
		kv = pg
	default:
		redisClient = redis.NewRedisClient(&cfg.Redis)
		if err := redis.Ping(ctx, redisClient); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		kv = store.NewRedisKV(redisClient)
	}
	log.Info("Store backend ready", zap.String("backend", cfg.StoreBackend))

	clk := clock.System{}

	// 接种日历
	calendarCache := cache.New(kv, clk, cfg.Calendar.CacheTTL, log)
	fetcher := calendar.NewHTTPFetcher(cfg.Calendar.BaseURL, cfg.Calendar.FetchTimeout, log)
	var reach calendar.Reachability = calendar.AlwaysReachable{}
	if cfg.Calendar.ReachabilityProbe == "tcp" {
		probe, err := calendar.NewTCPProbe(cfg.Calendar.BaseURL, 3*time.Second)
		if err != nil {
			log.Warn("Invalid calendar base URL for reachability probe, probe disabled", zap.Error(err))
		} else {
			reach = probe
		}
	}
	loader := calendar.NewLoader(calendar.DefaultBundle(), calendarCache, fetcher, reach, cfg.Calendar.FetchTimeout, log)
	calendars := calendar.NewRepository(loader, calendarCache, log)

	// 业务服务
	records := store.NewRecordStore(kv, clk, log)
	vaccinations := service.NewVaccinationService(records, calendars, clk, log)

	var (
		notifier   reminder.Notifier = reminder.NewLogNotifier(log)
		mqttClient *mqtt.Client
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, log.Named("mqtt"))
		if err != nil {
			log.Warn("MQTT unavailable, reminders will only be logged", zap.Error(err))
		} else {
			notifier = reminder.NewMQTTNotifier(mqttClient, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, log)
		}
	}
	reminders := reminder.NewService(records, calendars, notifier, clk, cfg.Reminder.LookaheadDays, cfg.Reminder.Interval, log)

	router := httpapi.NewRouter(log)
	router.RegisterRoutes(httpapi.NewHandler(vaccinations, calendars, reminders, clk, log))
	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	if cfg.Reminder.Enabled {
		go func() {
			if err := reminders.Run(ctx); err != nil {
				log.Error("Reminder dispatcher exited", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = redis.Close(redisClient)
	}
	_ = database.Close(db)
	log.Info("vaxtrack stopped")
}
