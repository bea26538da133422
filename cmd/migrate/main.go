// Command migrate applies pending schema migrations to the observer's
// SQLite store and exits. store.Open already applies migrations on every
// normal service boot; this command exists for operators who want to
// apply them ahead of a deploy without starting the full service,
// mirroring the teacher's standalone migration CLI.
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/digitalentity/aientity/internal/config"
	"github.com/digitalentity/aientity/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, filepath.Join(cfg.DataDir, "observer.db"), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	defer st.Close()

	log.Info().Msg("observer store migrations applied")
}
