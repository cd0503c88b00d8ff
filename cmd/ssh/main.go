package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"cot-sentinel/internal/app"
	"cot-sentinel/internal/cache"
	"cot-sentinel/internal/config"
	"cot-sentinel/internal/db"
	"cot-sentinel/internal/tui"
	"cot-sentinel/pkg/logging"
	"cot-sentinel/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	wishlogging "github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	gossh "golang.org/x/crypto/ssh"
)

const serviceName = "cot-sentinel-ssh"

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	buildServicesFunc = app.Build
	newWishServerFunc = wish.NewServer
	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

// fingerprintAuth accepts keys whose SHA256 fingerprint is allowed. An empty
// allow list rejects everyone.
func fingerprintAuth(allowed []string) func(ssh.Context, ssh.PublicKey) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, fp := range allowed {
		set[strings.TrimSpace(fp)] = struct{}{}
	}
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		fingerprint := gossh.FingerprintSHA256(key)
		if _, ok := set[fingerprint]; !ok {
			log.Warn().Str("user", ctx.User()).Str("fingerprint", fingerprint).Msg("ssh auth denied")
			return false
		}
		log.Info().Str("user", ctx.User()).Str("fingerprint", fingerprint).Msg("ssh auth accepted")
		return true
	}
}

func teaHandler(source tui.ScoreboardSource) bubbletea.Handler {
	return func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
		model := tui.NewModel(source, s.User())
		if pty, _, ok := s.Pty(); ok {
			model.SetSize(pty.Window.Width, pty.Window.Height)
		}
		return model, []tea.ProgramOption{tea.WithAltScreen()}
	}
}

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()
	logging.Init(cfg.LogLevel, cfg.LogFormat, serviceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	if len(cfg.SSHAllowedFingerprints) == 0 {
		log.Warn().Msg("SSH_ALLOWED_FINGERPRINTS empty, every login will be rejected")
	}

	srv, err := newWishServerFunc(
		wish.WithAddress(cfg.SSHAddr),
		wish.WithHostKeyPath(cfg.SSHHostKeyPath),
		wish.WithPublicKeyAuth(fingerprintAuth(cfg.SSHAllowedFingerprints)),
		wish.WithMiddleware(
			bubbletea.Middleware(teaHandler(services.Scores)),
			wishlogging.Middleware(),
		),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create SSH server")
	}

	if srv != nil {
		go func() {
			log.Info().Str("addr", cfg.SSHAddr).Msg("ssh server listening")
			if err := srv.ListenAndServe(); err != nil && err != ssh.ErrServerClosed {
				log.Error().Err(err).Msg("ssh server stopped")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down ssh server")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("ssh server shutdown error")
		}
	}

	log.Info().Msg("ssh server exited")
}
