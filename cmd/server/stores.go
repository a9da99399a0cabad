package main

import (
	"errors"
	"fmt"

	"go-directory-wiki/internal/config"
	"go-directory-wiki/internal/data"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/service"

	"github.com/jmoiron/sqlx"
)

// stores holds the repositories picked by store.driver.
type stores struct {
	pages    service.VersionStore
	contacts service.ContactRepository
	// db is nil unless a SQL driver is configured.
	db *sqlx.DB
	// authDriver selects the casbin adapter and the session backend.
	authDriver string
}

// Close releases the database connection, if any.
func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStores builds the page and contact repositories for cfg.Store.Driver.
// The "legacy" driver keeps pages in memory and sends every contact read and
// write to the legacy directory API. With any other driver a configured
// legacy API only serves contact reads when the primary store fails.
func openStores(cfg *config.Config, log logger.Logger) (*stores, error) {
	var s *stores
	switch cfg.Store.Driver {
	case "legacy":
		if cfg.Legacy.BaseURL == "" {
			return nil, errors.New("store driver legacy requires legacy.base_url")
		}
		log.Warn(fmt.Sprintf("Using the legacy directory at %s for contacts; pages are kept in memory.", cfg.Legacy.BaseURL))
		return &stores{
			pages:      data.NewMemoryPageRepository(data.FixturePages()...),
			contacts:   data.NewLegacyContactRepository(cfg.Legacy.BaseURL, cfg.Legacy.Timeout),
			authDriver: "memory",
		}, nil
	case "memory":
		log.Warn("Using the in-memory store; changes are lost on restart.")
		s = &stores{
			pages:      data.NewMemoryPageRepository(data.FixturePages()...),
			contacts:   data.NewMemoryContactRepository(data.FixtureContacts()...),
			authDriver: "memory",
		}
	default:
		log.Info(fmt.Sprintf("Connecting to the %s database...", cfg.Store.Driver))
		db, err := data.NewDB(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		log.Info("Applying database migrations...")
		if err := data.ApplyMigrations(db, cfg.Store.Driver); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		log.Info("Migrations applied successfully.")

		s = &stores{
			pages:      data.NewSQLPageRepository(db),
			contacts:   data.NewSQLContactRepository(db),
			db:         db,
			authDriver: cfg.Store.Driver,
		}
	}

	if cfg.Legacy.BaseURL != "" {
		log.Info(fmt.Sprintf("Falling back to the legacy directory at %s", cfg.Legacy.BaseURL))
		legacy := data.NewLegacyContactRepository(cfg.Legacy.BaseURL, cfg.Legacy.Timeout)
		s.contacts = data.NewFallbackContactRepository(s.contacts, legacy, log)
	}
	return s, nil
}
