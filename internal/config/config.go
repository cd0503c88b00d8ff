package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCOTCollectCron   = "0 0 22 * * 5"
	DefaultPriceCollectCron = "0 30 23 * * 1-5"
)

// CronParser is the schedule dialect used by the collection scheduler:
// six fields with a leading seconds column.
var CronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Config struct {
	HTTPAddr         string
	DatabaseURL      string
	RedisURL         string
	APIKey           string
	TelegramBotToken string
	MarketsFile      string

	CFTCBaseURL            string
	AlphaVantageAPIKey     string
	AlphaVantageBaseURL    string
	AlphaVantageReqsPerMin int

	LookBackWeeks     int
	FetchWeeks        int
	ScoreConcurrency  int
	ScoreCacheTTLSecs int

	CollectionEnabled bool
	COTCollectCron    string
	PriceCollectCron  string

	MCPTransport          string
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPAuthToken          string
	MCPRequestTimeoutSecs int
	MCPRateLimitPerMin    int

	OpenAIAPIKey string
	OpenAIModel  string

	SSHAddr                string
	SSHHostKeyPath         string
	SSHAllowedFingerprints []string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		APIKey:             os.Getenv("API_KEY"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		MarketsFile:        strings.TrimSpace(os.Getenv("MARKETS_FILE")),
		AlphaVantageAPIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		MCPAuthToken:       os.Getenv("MCP_AUTH_TOKEN"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.AlphaVantageAPIKey == "" {
		log.Warn().Msg("ALPHA_VANTAGE_API_KEY not set, price collection will be disabled")
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("API_KEY not set, collection endpoints are unauthenticated")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, narratives will be disabled")
	}

	cfg.HTTPAddr = stringEnv("HTTP_ADDR", ":8080")
	cfg.CFTCBaseURL = stringEnv("CFTC_BASE_URL", "https://publicreporting.cftc.gov")
	cfg.AlphaVantageBaseURL = stringEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co")
	cfg.AlphaVantageReqsPerMin = positiveIntEnv("ALPHA_VANTAGE_REQS_PER_MIN", 5)

	cfg.LookBackWeeks = positiveIntEnv("COT_LOOKBACK_WEEKS", 52)
	cfg.FetchWeeks = positiveIntEnv("COT_FETCH_WEEKS", 156)
	cfg.ScoreConcurrency = positiveIntEnv("SCORE_CONCURRENCY", 4)
	cfg.ScoreCacheTTLSecs = positiveIntEnv("SCORE_CACHE_TTL_SECS", 3600)

	cfg.CollectionEnabled = true
	if v := strings.TrimSpace(os.Getenv("COLLECTION_ENABLED")); v != "" {
		cfg.CollectionEnabled = strings.EqualFold(v, "true")
	}
	cfg.COTCollectCron = cronEnv("COT_COLLECT_CRON", DefaultCOTCollectCron)
	cfg.PriceCollectCron = cronEnv("PRICE_COLLECT_CRON", DefaultPriceCollectCron)

	cfg.MCPTransport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Warn().Str("transport", cfg.MCPTransport).Msg("unsupported MCP_TRANSPORT, defaulting to stdio")
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPBind = stringEnv("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = positiveIntEnv("MCP_HTTP_PORT", 8090)
	cfg.MCPRequestTimeoutSecs = positiveIntEnv("MCP_REQUEST_TIMEOUT_SECS", 5)
	cfg.MCPRateLimitPerMin = positiveIntEnv("MCP_RATE_LIMIT_PER_MIN", 60)

	cfg.OpenAIModel = stringEnv("OPENAI_MODEL", "gpt-4o-mini")

	cfg.SSHAddr = stringEnv("SSH_ADDR", ":2222")
	cfg.SSHHostKeyPath = stringEnv("SSH_HOST_KEY_PATH", ".ssh/cot_sentinel_ed25519")
	for _, fp := range strings.Split(os.Getenv("SSH_ALLOWED_FINGERPRINTS"), ",") {
		if fp = strings.TrimSpace(fp); fp != "" {
			cfg.SSHAllowedFingerprints = append(cfg.SSHAllowedFingerprints, fp)
		}
	}

	cfg.LogLevel = strings.ToLower(stringEnv("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(stringEnv("LOG_FORMAT", "json"))

	return cfg
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("invalid positive integer, using default")
		return def
	}
	return n
}

func cronEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if _, err := CronParser.Parse(v); err != nil {
		log.Warn().Err(err).Str("key", key).Str("value", v).Msg("invalid cron spec, using default")
		return def
	}
	return v
}
