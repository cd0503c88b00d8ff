package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestPoolConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB_MAX_CONNS", "DB_MIN_CONNS", "DB_MAX_CONN_LIFETIME", "DB_MAX_CONN_IDLE_TIME", "DB_HEALTH_CHECK_PERIOD"} {
		t.Setenv(k, "")
	}
	if got := PoolConfigFromEnv(); got != DefaultPoolConfig() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestPoolConfigFromEnvOverridesAndBounds(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "9")
	t.Setenv("DB_MAX_CONN_LIFETIME", "1h")
	t.Setenv("DB_MAX_CONN_IDLE_TIME", "junk")
	t.Setenv("DB_HEALTH_CHECK_PERIOD", "10s")

	cfg := PoolConfigFromEnv()
	if cfg.MaxConns != 4 || cfg.MinConns != 4 {
		t.Fatalf("expected min clamped to max, got %d/%d", cfg.MinConns, cfg.MaxConns)
	}
	if cfg.MaxConnLifetime != time.Hour || cfg.HealthCheckPeriod != 10*time.Second {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.MaxConnIdleTime != DefaultPoolConfig().MaxConnIdleTime {
		t.Fatalf("invalid idle time should keep default, got %s", cfg.MaxConnIdleTime)
	}

	t.Setenv("DB_MAX_CONNS", "0")
	if got := PoolConfigFromEnv().MaxConns; got != 1 {
		t.Fatalf("expected at least one connection, got %d", got)
	}
}

func TestInitPostgresRequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if err := InitPostgres(context.Background()); !errors.Is(err, ErrNoDatabaseURL) {
		t.Fatalf("expected ErrNoDatabaseURL, got %v", err)
	}
}

func TestNewPoolAppliesConfig(t *testing.T) {
	origNew, origPing := newPool, pingPool
	t.Cleanup(func() { newPool, pingPool = origNew, origPing })

	var captured *pgxpool.Config
	newPool = func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
		captured = cfg
		return nil, errors.New("stop before dialing")
	}

	cfg := DefaultPoolConfig()
	cfg.MaxConns = 7
	_, err := NewPool(context.Background(), "postgres://user:pw@localhost:5432/cot", cfg)
	if err == nil {
		t.Fatal("expected stubbed error")
	}
	if captured == nil || captured.MaxConns != 7 || captured.MinConns != 2 {
		t.Fatalf("expected pool settings applied, got %+v", captured)
	}
}

func TestNewPoolRejectsBadURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://nope", DefaultPoolConfig()); err == nil {
		t.Fatal("expected parse error")
	}
}
