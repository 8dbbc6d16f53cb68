package app

import (
	"context"
	"database/sql"

	"rifftube/internal/config"
	"rifftube/internal/db"
	"rifftube/internal/logger"
	"rifftube/internal/redis"
	"rifftube/internal/session"
	"rifftube/internal/user"
)

type Infra struct {
	DB       *sql.DB
	Redis    *redis.Client // nil when sessions are kept in memory
	Users    user.Repository
	Sessions session.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info("database ready", nil)

	infra := &Infra{
		DB:    sqlDB,
		Users: user.NewPostgresRepository(sqlDB),
	}

	if cfg.RedisAddr == "" {
		// Validate refuses this in production.
		logger.Warn("REDIS_ADDR unset; live sessions kept in memory", map[string]any{
			"env": cfg.Env,
		})
		infra.Sessions = session.NewMemoryStore()
		return infra, nil
	}

	redisClient, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	infra.Redis = redisClient
	infra.Sessions = session.NewRedisStore(redisClient.Client)
	return infra, nil
}

func (i *Infra) Close() error {
	var redisErr error
	if i.Redis != nil {
		redisErr = i.Redis.Close()
	}
	if err := i.DB.Close(); err != nil {
		return err
	}
	return redisErr
}
