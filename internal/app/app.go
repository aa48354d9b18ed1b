package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"gotogether/internal/auth"
	"gotogether/internal/chat"
	"gotogether/internal/config"
	"gotogether/internal/events"
	"gotogether/internal/handler"
	internalRedis "gotogether/internal/redis"
	"gotogether/internal/repository"
	"gotogether/internal/repository/memory"
	"gotogether/internal/repository/postgres"
	"gotogether/internal/service"
)

const defaultShutdownWait = 5 * time.Second

// App is the wired server: router, chat hub and the external clients it owns.
type App struct {
	Router *gin.Engine
	Hub    *chat.Hub
	Store  repository.Store

	logger  *slog.Logger
	closers []func() error
}

// New connects to every configured backend and wires the services. Postgres,
// Redis, Kafka and New Relic are each optional; without Postgres the
// in-memory store is used.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", "error", err)
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", "app", cfg.NewRelic.AppName)
			a.closers = append(a.closers, func() error {
				nrApp.Shutdown(defaultShutdownWait)
				return nil
			})
		}
	}

	if cfg.Database.Enabled() {
		db, err := NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.Store = postgres.NewStore(db)
		logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)
	} else {
		a.Store = memory.NewStore()
		logger.Warn("no database configured, using in-memory store")
	}

	var (
		redisClient *redis.Client
		locks       internalRedis.LockStoreInterface
		rosterCache internalRedis.RosterCacheInterface
		alertSink   chat.AlertSink
	)
	if cfg.Redis.Enabled() {
		var err error
		redisClient, err = NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisClient.Close)
		locks = internalRedis.NewLockStore(redisClient)
		rosterCache = internalRedis.NewCacheStore(redisClient)
		alertSink = internalRedis.NewAlertPublisher(redisClient)
		logger.Info("connected to Redis", "addr", cfg.Redis.Addr)
	}

	var publisher service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
		logger.Info("publishing ride events to Kafka", "topic", cfg.Kafka.Topic)
	}

	verifier, err := NewVerifier(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	roster := service.NewRosterService(a.Store, rosterCache, logger)
	a.Hub = chat.NewHub(a.Store.Repositories().Chat, roster, alertSink, logger, chat.Options{
		SendBuffer:   cfg.Chat.SendBuffer,
		HistoryLimit: cfg.Chat.HistoryLimit,
		WriteWait:    cfg.Chat.WriteWait,
		PongWait:     cfg.Chat.PongWait,
		PingPeriod:   cfg.Chat.PingPeriod,
	})

	requests := service.NewRideRequestService(a.Store, publisher, logger)
	grouping := service.NewGroupingService(a.Store, locks, roster, a.Hub, publisher, logger)
	notifications := service.NewNotificationService(a.Store, roster, a.Hub, publisher, logger)
	lifecycle := service.NewLifecycleService(a.Store, roster, a.Hub, publisher, logger)
	ratings := service.NewRatingService(a.Store, publisher, logger)
	drivers := service.NewDriverService(a.Store.Repositories().Drivers, logger)
	chats := service.NewChatService(a.Store, roster, a.Hub, cfg.Chat.HistoryLimit, logger)

	a.Router = NewRouter(RouterDeps{
		RideRequestHandler:  handler.NewRideRequestHandler(requests),
		GroupedRideHandler:  handler.NewGroupedRideHandler(grouping, lifecycle, ratings),
		NotificationHandler: handler.NewNotificationHandler(notifications),
		ChatHandler:         handler.NewChatHandler(chats, cfg.Server.AllowedOrigins, logger),
		DriverHandler:       handler.NewDriverHandler(drivers),
		Verifier:            verifier,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		Logger:              logger,
	})

	ok = true
	return a, nil
}

// NewVerifier builds the bearer verifier for the configured auth mode.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), nil
	case config.AuthModeFirebase:
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// Server wraps the router in an http.Server using the configured timeouts.
func (a *App) Server(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Close retires live chat rooms and releases external clients in reverse
// order of acquisition.
func (a *App) Close() error {
	if a.Hub != nil {
		a.Hub.Shutdown("server shutting down")
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenDatabase is used by the migrate command, which needs the raw pool.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if !cfg.Database.Enabled() {
		return nil, errors.New("no database configured: set DB_HOST or database.host")
	}
	return NewDatabase(ctx, cfg.Database, nil)
}
