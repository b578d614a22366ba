package main

import (
	"context"
	"database/sql"
	"flag"
	"io/fs"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/wordrush/db/migrations"
	"github.com/gokatarajesh/wordrush/internal/config"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, or version")
		dir     = flag.String("dir", "", "Read migrations from this directory instead of the embedded set")
		envFile = flag.String("env", "configs/.env", "Optional dotenv file")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Str("app", "wordrush-migrator").Logger()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", *envFile).Msg("could not read env file")
	}
	pg, err := config.LoadPostgres()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid database configuration")
	}

	db, err := sql.Open("pgx", pg.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database connection")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Str("host", pg.Host).Int("port", pg.Port).Msg("failed to reach database")
	}

	var source fs.FS = migrations.FS
	if *dir != "" {
		source = os.DirFS(*dir)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, source)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load migrations")
	}

	logger := log.With().Str("database", pg.Database).Bool("embedded", *dir == "").Logger()

	switch *command {
	case "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			logger.Info().Int64("version", r.Source.Version).Dur("took", r.Duration).Msg("applied")
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate up failed")
		}
		logger.Info().Int("count", len(results)).Msg("database is up to date")

	case "down":
		r, err := provider.Down(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate down failed")
		}
		logger.Info().Int64("version", r.Source.Version).Msg("rolled back")

	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read migration status")
		}
		for _, s := range statuses {
			ev := logger.Info().Int64("version", s.Source.Version).Str("state", string(s.State))
			if !s.AppliedAt.IsZero() {
				ev = ev.Time("applied_at", s.AppliedAt)
			}
			ev.Msg(s.Source.Path)
		}

	case "version":
		v, err := provider.GetDBVersion(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read database version")
		}
		logger.Info().Int64("version", v).Msg("current version")

	default:
		logger.Fatal().Str("command", *command).Msg("unknown command, use up, down, status or version")
	}
}
