// Command migrate-images copies contact images hosted elsewhere into the
// local object store and points each contact at its stored copy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-directory-wiki/internal/config"
	"go-directory-wiki/internal/data"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/media"
	"go-directory-wiki/internal/service"
	"go-directory-wiki/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log, os.Stdout)

	if cfg.Store.Driver == "memory" {
		log.Fatal(fmt.Errorf("store driver %q", cfg.Store.Driver), "Image migration needs a persistent store")
	}
	db, err := data.NewDB(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	if err := data.ApplyMigrations(db, cfg.Store.Driver); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}

	objects, err := storage.NewLocal(cfg.Storage.Dir, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatal(err, "Failed to initialize object storage")
	}
	directory := service.NewDirectoryService(
		data.NewSQLContactRepository(db),
		objects,
		media.NewProcessor(cfg.Storage.MaxDimension, cfg.Storage.Quality),
		nil, log, cfg.Store.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrator := service.NewImageMigrator(directory, service.NewHTTPFetcher(cfg.Legacy.Timeout), objects.IsPublicURL, log)
	results, err := migrator.Run(ctx)
	if err != nil {
		log.Fatal(err, "Image migration aborted")
	}

	var migrated, skipped, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case res.Skipped:
			skipped++
		default:
			migrated++
		}
	}
	log.With(map[string]interface{}{
		"migrated": migrated,
		"skipped":  skipped,
		"failed":   failed,
	}).Info("Image migration finished")
	if failed > 0 {
		stop()
		db.Close()
		os.Exit(1)
	}
}
