package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cot-sentinel/internal/app"
	"cot-sentinel/internal/bot"
	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/config"
	"cot-sentinel/internal/db"
	"cot-sentinel/internal/handler"
	"cot-sentinel/internal/job"
	"cot-sentinel/pkg/logging"
	"cot-sentinel/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "cot-sentinel/docs"
)

const serviceName = "cot-sentinel"

var (
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	initPostgresFunc   = db.InitPostgres
	initRedisFunc      = cache.InitRedis
	initTracerFunc     = tracing.InitTracer
	prepareFunc        = app.Prepare
	buildServicesFunc  = app.Build
	startSchedulerFunc = func(s *job.CollectionScheduler, ctx context.Context) {
		go func() {
			if err := s.Start(ctx); err != nil {
				log.Error().Err(err).Msg("collection scheduler stopped")
			}
		}()
	}
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           COT Sentinel API
// @version         1.0
// @description     Williams Commitments of Traders scoring with cross-market extremes.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	logging.Init(cfg.LogLevel, cfg.LogFormat, serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres is required for anything useful; redis only caches scores.
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
	if db.Pool != nil {
		if err := prepareFunc(ctx, cfg, db.Pool, services.Markets); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare database")
		}
	}

	if cfg.CollectionEnabled {
		scheduler := job.NewCollectionScheduler(tracer, services.Collector, cfg.COTCollectCron, cfg.PriceCollectCron, cfg.FetchWeeks)
		startSchedulerFunc(scheduler, ctx)
	}

	var narrator bot.Narrator
	if services.Narrator != nil {
		narrator = services.Narrator
	}
	startTelegramBotFunc(ctx, cfg.TelegramBotToken, bot.NewCommands(services.Scores, services.Markets, narrator))

	h := handler.New(tracer, services.Scores, services.Data, services.Collector, cfg.FetchWeeks)
	h.SetMetrics(services.Metrics)
	if services.Narrator != nil {
		h.SetNarrator(services.Narrator)
	}
	hub := handler.NewHub(services.Metrics)
	services.Scores.OnScoreboard(hub.Broadcast)
	h.SetHub(hub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}
