// helpdeskd serves the helpdesk tools over stdio. Stdout carries JSON-RPC
// frames only; logs go to stderr.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jtavares/agentic-support-rag/helpdesk"
	configx "github.com/jtavares/agentic-support-rag/pkg/config"
	_ "github.com/jtavares/agentic-support-rag/pkg/logger/autoload"
)

type AppConfig struct {
	// PostgresDSN selects the Postgres store; empty runs the seeded
	// in-memory store.
	PostgresDSN  string `envconfig:"POSTGRES_DSN" split_words:"true"`
	CreateSchema bool   `envconfig:"CREATE_SCHEMA" split_words:"true"`
}

func main() {
	cfg := configx.MustNew[AppConfig]("HELPDESK")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store helpdesk.Store
	if cfg.PostgresDSN != "" {
		pg, err := helpdesk.OpenPG(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()

		if cfg.CreateSchema {
			if err := pg.CreateSchema(ctx); err != nil {
				log.Fatal().Err(err).Msg("schema creation failed")
			}
		}
		store = pg
		log.Info().Msg("using postgres store")
	} else {
		store = helpdesk.NewMemStore()
		log.Info().Msg("using seeded in-memory store")
	}

	srv := helpdesk.NewServer(store, helpdesk.NewDocIndex(), helpdesk.StubSearcher{})
	log.Info().Msg("helpdesk tool server listening on stdio")

	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("tool server stopped")
	}
}
