package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/crmwarm/internal/app"
	"github.com/charlesng35/crmwarm/internal/cache"
	"github.com/charlesng35/crmwarm/internal/database"
	apperrors "github.com/charlesng35/crmwarm/pkg/errors"
	"github.com/charlesng35/crmwarm/pkg/logger"
)

// runtime holds the connections acquired for one invocation.
type runtime struct {
	db      *gorm.DB
	store   cache.Store
	log     *zap.Logger
	closers []func() error
}

// bootstrap connects to the client database and the cache endpoint. Both must be reachable
// before any row is read.
func bootstrap(ctx context.Context, cfg *app.Config) (*runtime, error) {
	rt := &runtime{log: logger.WithModule("bootstrap")}

	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, apperrors.ErrSourceUnavailable.WithInternal(fmt.Errorf("open database: %w", err))
	}
	rt.db = db
	rt.closers = append(rt.closers, func() error { return database.Close(db) })

	if err := database.Ping(ctx, db); err != nil {
		rt.close()
		return nil, apperrors.ErrSourceUnavailable.WithInternal(fmt.Errorf("ping database: %w", err))
	}
	rt.log.Info("database connected", zap.String("driver", dbCfg.Driver))

	store, closeStore, err := openCache(ctx, cfg.Cache)
	if err != nil {
		rt.close()
		return nil, apperrors.ErrCacheUnavailable.WithInternal(err)
	}
	rt.store = store
	rt.closers = append(rt.closers, closeStore)

	return rt, nil
}

func openCache(ctx context.Context, cfg app.CacheConfig) (cache.Store, func() error, error) {
	log := logger.WithModule("bootstrap")

	switch cfg.DriverName() {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.RedisClientConfig())
		if err != nil {
			return nil, nil, err
		}
		log.Info("redis connected", zap.String("addr", cfg.Redis.Address))
		return client, client.Close, nil
	case "database":
		dbCfg := cfg.Database.ConnectionConfig()
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache database: %w", err)
		}
		closeDB := func() error { return database.Close(db) }
		if err := database.MigrateCache(db); err != nil {
			_ = closeDB()
			return nil, nil, fmt.Errorf("migrate cache database: %w", err)
		}
		store := cache.NewDatabaseStore(db)
		if err := store.Ping(ctx); err != nil {
			_ = closeDB()
			return nil, nil, err
		}
		log.Info("database cache connected", zap.String("driver", dbCfg.Driver))
		return store, closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache driver %q", strings.TrimSpace(cfg.Driver))
	}
}

// close releases connections in reverse order of acquisition.
func (r *runtime) close() {
	var errs error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, r.closers[i]())
	}
	if errs != nil {
		r.log.Warn("failed to release connections", zap.Error(errs))
	}
}
