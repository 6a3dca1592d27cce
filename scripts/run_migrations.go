package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/database"
	"github.com/safar/marketplace-orders/internal/telemetry"
)

func main() {
	dir := flag.String("dir", "migrations/orders", "migration directory (migrations/orders or migrations/payments)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: go run scripts/run_migrations.go [-dir migrations/payments] [up|down]")
		os.Exit(2)
	}

	direction := flag.Arg(0)
	if direction != "up" && direction != "down" {
		fmt.Fprintln(os.Stderr, "Direction must be 'up' or 'down'")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	telemetry.InitLogger(cfg.Log, "migrations")

	dbCfg := cfg.Database
	if filepath.Base(filepath.Clean(*dir)) == "payments" {
		dbCfg.URL = cfg.Payment.DatabaseURL
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer db.Close()

	files, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dir).Msg("read migration directory")
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(migrationFiles)))
	}

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(*dir, filename))
		if err != nil {
			log.Fatal().Err(err).Str("file", filename).Msg("read migration file")
		}

		log.Info().Str("file", filename).Msg("running migration")
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			log.Fatal().Err(err).Str("file", filename).Msg("execute migration")
		}
	}

	log.Info().Int("count", len(migrationFiles)).Str("direction", direction).Str("dir", *dir).Msg("migrations complete")
}
