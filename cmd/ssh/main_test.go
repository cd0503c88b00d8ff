package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"testing"
	"time"

	"cot-sentinel/internal/config"

	"github.com/charmbracelet/ssh"
	gossh "golang.org/x/crypto/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fakeSSHContext struct {
	ssh.Context
	user string
}

func (c fakeSSHContext) User() string { return c.user }

func newKey(t *testing.T) gossh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	key, err := gossh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("wrap key: %v", err)
	}
	return key
}

func TestFingerprintAuth(t *testing.T) {
	allowedKey := newKey(t)
	otherKey := newKey(t)
	auth := fingerprintAuth([]string{" " + gossh.FingerprintSHA256(allowedKey) + " "})
	ctx := fakeSSHContext{user: "alice"}

	if !auth(ctx, allowedKey) {
		t.Fatal("expected allowed fingerprint to pass")
	}
	if auth(ctx, otherKey) {
		t.Fatal("expected unknown fingerprint to be rejected")
	}
}

func TestFingerprintAuthEmptyAllowList(t *testing.T) {
	if fingerprintAuth(nil)(fakeSSHContext{user: "bob"}, newKey(t)) {
		t.Fatal("expected empty allow list to reject")
	}
}

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubSSHDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			LookBackWeeks:          52,
			ScoreConcurrency:       1,
			AlphaVantageReqsPerMin: 5,
			SSHAddr:                ":2222",
			SSHHostKeyPath:         ".ssh/test_key",
		}
	}
	initPostgresFunc = func(context.Context) error { return nil }
	initRedisFunc = func(context.Context) error { return nil }
	initTracerFunc = func(ctx context.Context, service string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
