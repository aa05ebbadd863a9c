package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sunilkumartc/vet-cares-sub000/pkg/config"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/database"
	"github.com/sunilkumartc/vet-cares-sub000/pkg/logger"
)

func main() {
	cfg, err := config.LoadWithValidation("stock-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stock-migrate", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	log.Info().Dur("duration", time.Since(start)).Msg("migrations applied")
}
