package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "HTTP_ADDR", "COT_LOOKBACK_WEEKS", "SCORE_CONCURRENCY",
		"COLLECTION_ENABLED", "COT_COLLECT_CRON", "ALPHA_VANTAGE_REQS_PER_MIN", "MCP_TRANSPORT",
		"SSH_ALLOWED_FINGERPRINTS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %s", cfg.HTTPAddr)
	}
	if cfg.LookBackWeeks != 52 {
		t.Fatalf("expected default look-back 52, got %d", cfg.LookBackWeeks)
	}
	if cfg.ScoreConcurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.ScoreConcurrency)
	}
	if !cfg.CollectionEnabled {
		t.Fatal("expected collection enabled by default")
	}
	if cfg.COTCollectCron != DefaultCOTCollectCron {
		t.Fatalf("expected default cot cron, got %s", cfg.COTCollectCron)
	}
	if cfg.AlphaVantageReqsPerMin != 5 {
		t.Fatalf("expected free tier rate 5, got %d", cfg.AlphaVantageReqsPerMin)
	}
	if cfg.MCPTransport != "stdio" {
		t.Fatalf("expected stdio transport, got %s", cfg.MCPTransport)
	}
	if len(cfg.SSHAllowedFingerprints) != 0 {
		t.Fatalf("expected no fingerprints, got %v", cfg.SSHAllowedFingerprints)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %s", cfg.LogLevel)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("COT_LOOKBACK_WEEKS", "26")
	t.Setenv("COLLECTION_ENABLED", "false")
	t.Setenv("COT_COLLECT_CRON", "0 15 21 * * 5")
	t.Setenv("MCP_TRANSPORT", "HTTP")
	t.Setenv("SSH_ALLOWED_FINGERPRINTS", "SHA256:abc, ,SHA256:def")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LookBackWeeks != 26 {
		t.Fatalf("expected look-back 26, got %d", cfg.LookBackWeeks)
	}
	if cfg.CollectionEnabled {
		t.Fatal("expected collection disabled")
	}
	if cfg.COTCollectCron != "0 15 21 * * 5" {
		t.Fatalf("expected custom cron, got %s", cfg.COTCollectCron)
	}
	if cfg.MCPTransport != "http" {
		t.Fatalf("expected http transport, got %s", cfg.MCPTransport)
	}
	if len(cfg.SSHAllowedFingerprints) != 2 || cfg.SSHAllowedFingerprints[1] != "SHA256:def" {
		t.Fatalf("unexpected fingerprints %v", cfg.SSHAllowedFingerprints)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected lowercased level, got %s", cfg.LogLevel)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("COT_LOOKBACK_WEEKS", "bad")
	t.Setenv("SCORE_CONCURRENCY", "-2")
	t.Setenv("COT_COLLECT_CRON", "every friday")
	t.Setenv("MCP_TRANSPORT", "grpc")

	cfg := Load()
	if cfg.LookBackWeeks != 52 {
		t.Fatalf("invalid look-back should fall back to default, got %d", cfg.LookBackWeeks)
	}
	if cfg.ScoreConcurrency != 4 {
		t.Fatalf("negative concurrency should fall back to default, got %d", cfg.ScoreConcurrency)
	}
	if cfg.COTCollectCron != DefaultCOTCollectCron {
		t.Fatalf("invalid cron should fall back to default, got %s", cfg.COTCollectCron)
	}
	if cfg.MCPTransport != "stdio" {
		t.Fatalf("unsupported transport should fall back to stdio, got %s", cfg.MCPTransport)
	}
}
