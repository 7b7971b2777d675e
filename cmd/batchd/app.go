package main

import (
	"context"
	"fmt"
	"io"

	"github.com/TimeWtr/batch_scheduler"
	"github.com/TimeWtr/batch_scheduler/repository"
	"github.com/TimeWtr/batch_scheduler/repository/dao"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZap(cfg *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openRepository 按配置打开存储，返回的Closer负责释放连接，zl为nil时不记录存储层日志
func openRepository(ctx context.Context, cfg *Config, zl *zap.Logger) (repository.JobRepository, io.Closer, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	if cfg.StoreDriver == DriverRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return dao.NewRedisJobDAO(client, cfg.RedisPrefix, dao.WithRedisLogger(zl)), client, nil
	}

	db, err := dao.OpenGorm(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}

	d := dao.NewGormJobDAO(db)
	if err = d.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return d, sqlDB, nil
}

func newLogger(cfg *Config) (*zap.Logger, batch_scheduler.Logger, func(), error) {
	zl, err := newZap(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return zl, batch_scheduler.NewZapLogger(zl), func() { _ = zl.Sync() }, nil
}
