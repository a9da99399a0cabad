package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-directory-wiki/internal/auth"
	"go-directory-wiki/internal/cache"
	"go-directory-wiki/internal/config"
	"go-directory-wiki/internal/handler"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/media"
	"go-directory-wiki/internal/middleware"
	"go-directory-wiki/internal/service"
	"go-directory-wiki/internal/session"
	"go-directory-wiki/internal/storage"
	"go-directory-wiki/internal/view"
	"go-directory-wiki/web"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log, os.Stdout)

	// --- Store Selection ---
	st, err := openStores(cfg, log)
	if err != nil {
		log.Fatal(err, "Failed to open stores")
	}
	defer st.Close()
	var sqlDB *sql.DB
	if st.db != nil {
		sqlDB = st.db.DB
	}

	// --- Cache Initialization ---
	log.Info("Initializing SQLite cache...")
	appCache, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal(err, "Failed to initialize cache")
	}
	defer appCache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go purgeCache(ctx, appCache, log)

	// --- Object Storage and Services ---
	objects, err := storage.NewLocal(cfg.Storage.Dir, cfg.Storage.BaseURL)
	if err != nil {
		log.Fatal(err, "Failed to initialize object storage")
	}
	notifier := service.NewNotifier()

	pageService := service.NewPageService(st.pages, appCache, notifier, log,
		service.WithStoreTimeout(cfg.Store.Timeout),
		service.WithCategoryTTL(appCache.TTL()),
	)
	directoryService := service.NewDirectoryService(st.contacts, objects,
		media.NewProcessor(cfg.Storage.MaxDimension, cfg.Storage.Quality),
		notifier, log, cfg.Store.Timeout)

	// --- Session Management Setup ---
	sessionManager := session.New(cfg.Session, cfg.Server.TLS.Enabled, st.authDriver, sqlDB)

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	var authenticator *auth.Authenticator
	if cfg.OIDC.IssuerURL != "" {
		authenticator, err = auth.NewAuthenticator(ctx, &cfg.OIDC)
		if err != nil {
			log.Fatal(err, "Failed to initialize authenticator")
		}
	} else {
		log.Warn("No OIDC issuer configured; login is disabled and the site is read-only.")
	}
	enforcer, err := auth.NewEnforcer(st.authDriver, cfg.Store.DSN)
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, cfg.Auth.Editors, log)

	// --- View Template Initialization ---
	viewService, err := view.New(web.TemplateFS)
	if err != nil {
		log.Fatal(err, "Failed to initialize view templates")
	}

	// --- Router Setup ---
	router := handler.NewRouter(handler.Handlers{
		Pages:     handler.NewPageHandler(pageService, viewService, log),
		Directory: handler.NewDirectoryHandler(directoryService, log),
		Events:    handler.NewEventsHandler(notifier, 30*time.Second, log),
		Auth:      handler.NewAuthHandler(authenticator, sessionManager, log),
		Seo:       handler.NewSeoHandler(pageService, cfg.Server.BaseURL),
		Media:     objects.Handler(),
	},
		middleware.Authorizer(enforcer, sessionManager, log),
		middleware.Error(log, viewService),
		sessionManager,
	)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()

	<-ctx.Done()
	log.Warn("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}

// purgeCache drops expired cache rows until ctx is done.
func purgeCache(ctx context.Context, c *cache.Cache, log logger.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.PurgeExpired(ctx)
			if err != nil {
				log.Error(err, "Failed to purge expired cache entries")
				continue
			}
			if n > 0 {
				log.Debug(fmt.Sprintf("Purged %d expired cache entries", n))
			}
		}
	}
}
