package app

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/staywatch/internal/config"
	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/redis"
	"github.com/MrSnakeDoc/staywatch/internal/state"
	"github.com/MrSnakeDoc/staywatch/internal/store/file"
	"github.com/MrSnakeDoc/staywatch/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/staywatch/internal/store/redis"
	"github.com/MrSnakeDoc/staywatch/internal/store/sqlite"
)

// openBackend opens the configured state backend. Connection failures are
// *domain.PersistenceError: without state a run cannot tell new from seen.
func openBackend(ctx context.Context, cfg *config.Config, log logger.Logger) (state.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return file.New(cfg.DataStore), nil

	case config.BackendRedis:
		client, err := redis.Connect(ctx, redis.ConnectOptions{
			URL:            cfg.RedisURL,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "open", Backend: "redis", Err: err}
		}
		return redisstore.New(client, redisstore.StateKey(cfg.RedisKey)), nil

	case config.BackendSQLite:
		b, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "open", Backend: "sqlite", Err: err}
		}
		return b, nil

	case config.BackendPostgres:
		b, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "open", Backend: "postgres", Err: err}
		}
		return b, nil
	}
	return nil, &domain.ConfigError{
		Field: "STAYWATCH_STORE_BACKEND",
		Err:   fmt.Errorf("unknown backend %q", cfg.StoreBackend),
	}
}
