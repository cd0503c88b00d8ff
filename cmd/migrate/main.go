package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"cot-sentinel/internal/migrate"
	"cot-sentinel/pkg/logging"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"
	usage      = "usage: go run ./cmd/migrate [up|down|version] [steps]"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

func main() {
	_ = loadEnvFunc()
	logging.Init(os.Getenv("LOG_LEVEL"), "console", "cot-sentinel-migrate")

	if len(os.Args) < 2 {
		log.Fatal().Msg(usage)
	}

	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	migrations, err := migrate.Embedded()
	if err != nil {
		log.Fatal().Err(err).Msg("load migrations")
	}

	switch os.Args[1] {
	case cmdUp:
		applied, err := migrate.Up(ctx, pool, migrations)
		if err != nil {
			log.Fatal().Err(err).Msg("apply migrations up")
		}
		log.Info().Int("applied", applied).Msg("migrations up complete")
	case cmdDown:
		steps, err := parseSteps(os.Args[2:])
		if err != nil {
			log.Fatal().Err(err).Msg("invalid down steps")
		}
		if err := migrate.EnsureTable(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("ensure schema_migrations table")
		}
		rolledBack, err := migrate.Down(ctx, pool, migrations, steps)
		if err != nil {
			log.Fatal().Err(err).Msg("apply migrations down")
		}
		log.Info().Int("rolled_back", rolledBack).Msg("migrations down complete")
	case cmdVersion:
		if err := migrate.EnsureTable(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("ensure schema_migrations table")
		}
		version, name, err := migrate.Current(ctx, pool)
		if err != nil {
			log.Fatal().Err(err).Msg("read current version")
		}
		if version == 0 {
			log.Info().Msg("no migrations applied")
			return
		}
		log.Info().Int64("version", version).Str("name", name).Msg("current version")
	default:
		log.Fatal().Str("command", os.Args[1]).Msg(usage)
	}
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
