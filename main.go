package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"parking_market/internal/api"
	"parking_market/internal/api/handler"
	"parking_market/internal/client"
	"parking_market/internal/clock"
	"parking_market/internal/config"
	"parking_market/internal/domain"
	"parking_market/internal/realtime"
	"parking_market/internal/repository"
	"parking_market/internal/repository/postgresql"
	"parking_market/internal/service"

	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	gin.SetMode(cfg.GinMode)
	logger.Info("Configuration loaded")

	// 2. Optional realtime audit log
	var db *sql.DB
	var eventLogRepo repository.RealtimeEventLogRepository
	if cfg.AuditLogEnabled() {
		db, err = postgresql.NewDB(cfg)
		if err != nil {
			logger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		eventLogRepo = postgresql.NewPgRealtimeEventLogRepository(db)
		logger.Info("Realtime event audit log enabled")
	} else {
		logger.Warn("DB_HOST not set, realtime event audit log disabled")
	}

	// 3. Optional geocode cache
	rdb := config.NewRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
		logger.Info("Geocode cache enabled")
	} else if cfg.RedisEnabled() {
		logger.Warn("Redis unreachable, geocoding without cache")
	}

	// 4. Upstream clients
	parkingClient := client.NewParkingAPIClient(client.ParkingAPIConfig{
		BaseURL: cfg.ParkingAPIURL,
		Timeout: cfg.ParkingAPITimeout,
	}, logger)
	mapsClient := client.NewMapsClient(client.MapsConfig{
		BaseURL:     cfg.MapsAPIURL,
		AccessToken: cfg.MapsAccessToken,
		Country:     cfg.MapsCountry,
	}, logger)
	geocoder := client.NewCachedGeocoder(mapsClient, rdb, cfg.GeocodeTTL, logger)

	// 5. Downstream WebSocket and realtime hub
	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	webSocketManager := handler.NewWebSocketManager(logger)
	go webSocketManager.Start(rootCtx)

	hub := realtime.NewHub(eventLogRepo, logger)
	go hub.Start(rootCtx)
	<-hub.Ready()

	// 6. Services
	location := service.NewGeoLocationProvider(
		domain.Coordinate{Latitude: cfg.DefaultLatitude, Longitude: cfg.DefaultLongitude},
		service.DefaultPositionOptions(),
		logger,
	)
	sessionService := service.NewSessionService(service.BuyerDeps{
		Data:      parkingClient,
		Geocoder:  geocoder,
		Router:    mapsClient,
		Location:  location,
		Clock:     clock.Real(),
		Publisher: webSocketManager,
		Logger:    logger,
	}, hub)
	sessionService.SetWatchers(webSocketManager)
	authService := service.NewAuthService(cfg.JWTSecret)

	cronService := service.NewCronService(service.CronConfig{
		EventLogCleanupSpec: cfg.EventLogCleanupCron,
		EventLogRetention:   time.Duration(cfg.EventLogRetentionDays) * 24 * time.Hour,
		SessionSweepSpec:    cfg.SessionSweepCron,
		SessionIdleTimeout:  cfg.SessionIdleTimeout,
	}, sessionService, eventLogRepo, logger)
	if err := cronService.Start(); err != nil {
		logger.WithError(err).Fatal("Could not start scheduled jobs")
	}

	// 7. Realtime sources
	var sources []realtime.Source
	if cfg.RealtimeWSURL != "" {
		sources = append(sources, realtime.NewWSSource(cfg.RealtimeWSURL, nil, logger))
	}
	if cfg.SQSEventQueueURL != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(rootCtx, awsgo_config.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.WithError(err).Fatal("Could not load AWS SDK config")
		}
		sources = append(sources, realtime.NewSQSConsumer(sqs.NewFromConfig(awsSDKCfg), cfg.SQSEventQueueURL, logger))
	}
	if cfg.RabbitMQURL != "" {
		sources = append(sources, realtime.NewAMQPConsumer(cfg.RabbitMQURL, cfg.RealtimeQueue, logger))
	}
	if len(sources) == 0 {
		logger.Warn("No realtime source configured, listings will not update live")
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src realtime.Source) {
			defer wg.Done()
			logger.WithField("source", src.Name()).Info("Realtime source starting")
			src.Run(rootCtx, hub)
			logger.WithField("source", src.Name()).Info("Realtime source stopped")
		}(src)
	}

	// 8. HTTP Router
	router := api.SetupRouter(api.RouterDeps{
		Sessions:       sessionService,
		Auth:           authService,
		Hub:            hub,
		EventLog:       eventLogRepo,
		Cron:           cronService,
		WSManager:      webSocketManager,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.ServerPort).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	cronService.Stop()
	sessionService.CloseAll()
	cancelRoot()

	if len(sources) > 0 {
		done := make(chan struct{})
		go func() {
			defer close(done)
			wg.Wait()
		}()
		select {
		case <-done:
			logger.Info("Realtime sources stopped")
		case <-time.After(5 * time.Second):
			logger.Warn("Realtime sources did not stop in time")
		}
	}

	logger.Info("Server stopped")
}
