// Package app wires stores, caches and services from process configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsurvey/internal/cache"
	"chatsurvey/internal/config"
	"chatsurvey/internal/repository"
	"chatsurvey/internal/service"
	"chatsurvey/internal/transport/rest"
	"chatsurvey/internal/transport/ws"
)

const reportCacheTTL = 30 * time.Second

// App holds the wired dependencies of a running server
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Responses    repository.ResponseRepo
	SurveyRepo   repository.SurveyRepo
	SessionCache cache.SessionCache
	ReportCache  cache.ReportCache

	AuthService    *service.AuthService
	SurveyService  *service.SurveyService
	RuntimeService *service.RuntimeService
	ReportService  *service.ReportService
	WSHub          *ws.Hub

	closers []func() error
}

// New connects the configured store and cache and builds the services
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.WSHub = ws.NewHub(logger)
	a.closers = append(a.closers, func() error { a.WSHub.Close(); return nil })

	a.AuthService = service.NewAuthService(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)
	a.SurveyService = service.NewSurveyService(a.SurveyRepo, cfg.SurveyConfigPath, cfg.SurveyID)
	a.RuntimeService = service.NewRuntimeService(a.Responses,
		service.WithLogger(logger),
		service.WithSessionCache(a.SessionCache),
		service.WithMaxRoutingHops(cfg.MaxRoutingHops),
		service.WithStrictReplay(cfg.StrictReplay),
	)
	a.ReportService = service.NewReportService(a.Responses, a.SurveyService, a.ReportCache)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	a.RuntimeService.SetBroadcaster(a.WSHub)
	a.ReportService.SetBroadcaster(a.WSHub)

	return a, nil
}

// Container exposes the app's services to the router
func (a *App) Container() *rest.Container {
	return &rest.Container{
		AuthService:    a.AuthService,
		SurveyService:  a.SurveyService,
		RuntimeService: a.RuntimeService,
		ReportService:  a.ReportService,
		WSHub:          a.WSHub,
		DeploymentID:   a.Config.DeploymentID,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		Logger:         a.Logger,
	}
}

// Close releases connections in reverse order of opening
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("ping mongo: %w", err)
		}

		db := client.Database(a.Config.MongoDB)
		if err := repository.EnsureResponseIndexes(ctx, db); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		a.Responses = repository.NewMongoResponseRepo(db)
		a.SurveyRepo = repository.NewSurveyRepo(db)
		a.Logger.Info("connected to mongo", "db", a.Config.MongoDB)

	case config.StoreSQLite:
		store, err := repository.OpenSQLite(a.Config.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Responses = store
		a.SurveyRepo = store
		a.Logger.Info("opened sqlite store", "path", a.Config.SQLitePath)

	default:
		return fmt.Errorf("unsupported store driver %q", a.Config.StoreDriver)
	}
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	switch a.Config.CacheDriver {
	case config.CacheRedis:
		rdb := redis.NewClient(&redis.Options{Addr: a.Config.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		a.SessionCache = cache.NewRedisSessionCache(rdb, a.Config.SessionTTL)
		a.ReportCache = cache.NewRedisReportCache(rdb, reportCacheTTL)
		a.Logger.Info("connected to redis", "addr", a.Config.RedisAddr)

	case config.CacheMemory:
		a.SessionCache = cache.NewMemorySessionCache(
			cache.WithTTL(a.Config.SessionTTL),
			cache.WithMaxSessions(a.Config.MaxSessions),
		)
		a.ReportCache = cache.NewMemoryReportCache(reportCacheTTL)

	default:
		return fmt.Errorf("unsupported cache driver %q", a.Config.CacheDriver)
	}
	return nil
}
