package db

import (
	"context"
	"time"

	"rps_arena/internal/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns     = 20
	pingAttempts = 6
)

// Connect opens the pool and retries the ping until the database answers.
func Connect(dsn string) *pgxpool.Pool {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid database url", "error", err)
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := pool.Ping(ctx)
		if err != nil {
			logger.Warn("database not ready", "error", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(pingAttempts))
	if err != nil {
		pool.Close()
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected", "max_conns", maxConns)
	return pool
}
