package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"pkg.aura.care/moodfeed/internal/config"
	"pkg.aura.care/moodfeed/internal/storage"
	"pkg.aura.care/moodfeed/internal/storage/gormstore"
	"pkg.aura.care/moodfeed/internal/storage/memory"
	"pkg.aura.care/moodfeed/internal/storage/postgres"
	"pkg.aura.care/moodfeed/internal/storage/redisstore"
)

func openStore(ctx context.Context, l *zap.Logger, c *config.Config) (storage.Store, error) {
	sc := c.Storage
	l = l.Named("storage")
	switch sc.Driver {
	case config.DriverMemory:
		l.Warn("Using in-memory storage, nothing will survive a restart.")
		return memory.New(memory.WithMaxAttempts(sc.MaxAttempts)), nil
	case config.DriverPostgres:
		s := postgres.NewStore(l, sc.MaxAttempts)
		if err := s.Connect(ctx, sc.PostgresDSN); err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverGorm:
		return gormstore.Open(l, sc.GormDialect, sc.GormDSN, c.Logging.Level == zapcore.DebugLevel)
	case config.DriverRedis:
		return redisstore.Connect(ctx, l, redisstore.Config{
			Address:     sc.RedisAddr,
			Password:    sc.RedisPassword,
			DB:          sc.RedisDB,
			MaxAttempts: sc.MaxAttempts,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}
