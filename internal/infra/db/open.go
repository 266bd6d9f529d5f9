package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrMissingDSN is returned by Open when no connection string is configured.
var ErrMissingDSN = errors.New("database url not set")

const pingTimeout = 5 * time.Second

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// Open creates a pgx-backed pool for dsn, applies the pool settings from the
// environment and verifies the connection. An empty dsn falls back to
// DATABASE_URL.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	cfg := getConnectionConfigFromEnv()
	apply(db, cfg)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	return db, nil
}

func apply(db *sql.DB, cfg ConnectionConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// getConnectionConfigFromEnv reads connection pool configuration from environment variables.
// Falls back to default values if not set or not positive.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	if val, ok := positiveInt("DB_MAX_OPEN_CONNS"); ok {
		cfg.MaxOpenConns = val
	}
	if val, ok := positiveInt("DB_MAX_IDLE_CONNS"); ok {
		cfg.MaxIdleConns = val
	}
	if val, ok := positiveDuration("DB_CONN_MAX_LIFETIME"); ok {
		cfg.ConnMaxLifetime = val
	}
	if val, ok := positiveDuration("DB_CONN_MAX_IDLE_TIME"); ok {
		cfg.ConnMaxIdleTime = val
	}

	return cfg
}

func positiveInt(key string) (int, bool) {
	val, err := strconv.Atoi(os.Getenv(key))
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}

func positiveDuration(key string) (time.Duration, bool) {
	val, err := time.ParseDuration(os.Getenv(key))
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}
