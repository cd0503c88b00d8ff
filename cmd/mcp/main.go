package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cot-sentinel/internal/app"
	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/config"
	"cot-sentinel/internal/db"
	"cot-sentinel/internal/mcptools"
	"cot-sentinel/pkg/logging"
	"cot-sentinel/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const serviceName = "cot-sentinel-mcp"

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	buildServicesFunc = app.Build
	runStdioFunc      = func(ctx context.Context, s *mcp.Server) error { return s.Run(ctx, &mcp.StdioTransport{}) }
	serveHTTPFunc     = func(srv *http.Server) error { return srv.ListenAndServe() }
	setupSignalNotify = signal.NotifyContext
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()
	// stdout carries the MCP stream; logs go to stderr.
	logging.Init(cfg.LogLevel, cfg.LogFormat, serviceName)

	ctx, stop := setupSignalNotify(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	if err := initPostgresFunc(ctx); err != nil {
		log.Error().Err(err).Msg("postgres unavailable")
	}
	if err := initRedisFunc(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, score caching disabled")
	}

	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	services := buildServicesFunc(cfg, tracer, db.Pool, cache.Client)
	server := mcptools.NewServer(services.Scores, mcptools.Options{
		Version:         tracing.ServiceVersion,
		RequestTimeout:  time.Duration(cfg.MCPRequestTimeoutSecs) * time.Second,
		RateLimitPerMin: cfg.MCPRateLimitPerMin,
	})

	if cfg.MCPTransport == "http" {
		serveHTTP(ctx, cfg, server)
		return
	}

	log.Info().Msg("mcp server on stdio")
	if err := runStdioFunc(ctx, server); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("mcp stdio session ended")
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcp.Server) {
	if cfg.MCPAuthToken == "" {
		log.Warn().Msg("MCP_AUTH_TOKEN not set, MCP HTTP endpoint is unauthenticated")
	}
	addr := net.JoinHostPort(cfg.MCPHTTPBind, strconv.Itoa(cfg.MCPHTTPPort))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mcptools.NewHTTPHandler(server, cfg.MCPAuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("mcp http shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("mcp server on streamable http")
	if err := serveHTTPFunc(srv); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("mcp http listen")
	}
}
