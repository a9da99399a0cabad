package handler

import (
	"net/http"

	appmiddleware "go-directory-wiki/internal/middleware"
	"go-directory-wiki/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Pages     *PageHandler
	Directory *DirectoryHandler
	Events    *EventsHandler
	Auth      *AuthHandler
	Seo       *SeoHandler
	// Media serves uploaded images under /media/. Optional.
	Media http.Handler
}

// NewRouter creates and configures a new chi router.
func NewRouter(h Handlers, authzMiddleware func(http.Handler) http.Handler, errorMiddleware func(appmiddleware.AppHandler) http.Handler, sessionManager session.Manager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(sessionManager.LoadAndSave)

	r.Get("/auth/login", h.Auth.handleLogin)
	r.Get("/auth/callback", h.Auth.handleCallback)
	r.Get("/auth/logout", h.Auth.handleLogout)

	r.Get("/robots.txt", h.Seo.robotsHandler)
	r.Get("/sitemap.xml", h.Seo.sitemapHandler)

	r.Group(func(r chi.Router) {
		r.Use(authzMiddleware)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/wiki/welcome", http.StatusFound)
		})
		r.Method(http.MethodGet, "/wiki/{slug}", errorMiddleware(h.Pages.viewHandler))
		if h.Media != nil {
			r.Handle("/media/*", http.StripPrefix("/media", h.Media))
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/events", h.Events.streamHandler)

			r.Route("/wiki", func(r chi.Router) {
				r.Method(http.MethodGet, "/categories", errorMiddleware(h.Pages.categoriesHandler))
				r.Route("/pages", func(r chi.Router) {
					r.Method(http.MethodGet, "/", errorMiddleware(h.Pages.listHandler))
					r.Method(http.MethodPost, "/", errorMiddleware(h.Pages.createHandler))
					r.Method(http.MethodGet, "/{slug}", errorMiddleware(h.Pages.getHandler))
					r.Method(http.MethodPut, "/{slug}", errorMiddleware(h.Pages.updateHandler))
					r.Method(http.MethodDelete, "/{slug}", errorMiddleware(h.Pages.deleteHandler))
					r.Method(http.MethodGet, "/{slug}/versions", errorMiddleware(h.Pages.versionsHandler))
					r.Method(http.MethodPost, "/{slug}/versions/{version}/restore", errorMiddleware(h.Pages.restoreHandler))
				})
			})

			r.Route("/directory", func(r chi.Router) {
				r.Method(http.MethodGet, "/categories", errorMiddleware(h.Directory.categoriesHandler))
				r.Route("/contacts", func(r chi.Router) {
					r.Method(http.MethodGet, "/", errorMiddleware(h.Directory.listHandler))
					r.Method(http.MethodPost, "/", errorMiddleware(h.Directory.createHandler))
					r.Method(http.MethodGet, "/{id}", errorMiddleware(h.Directory.getHandler))
					r.Method(http.MethodPut, "/{id}", errorMiddleware(h.Directory.updateHandler))
					r.Method(http.MethodDelete, "/{id}", errorMiddleware(h.Directory.deleteHandler))
					r.Method(http.MethodPost, "/{id}/image", errorMiddleware(h.Directory.imageHandler))
				})
			})
		})
	})

	return r
}
