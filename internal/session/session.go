package session

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go-directory-wiki/internal/config"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// SubjectKey holds the authenticated subject in the session.
const SubjectKey = "user_subject"

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	GetString(ctx context.Context, key string) string
	PopString(ctx context.Context, key string) string
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}

// New creates a session manager. Sessions live in the sessions table of db
// for the mysql and sqlite3 drivers, and in process memory otherwise.
func New(cfg config.SessionConfig, secure bool, driver string, db *sql.DB) *scs.SessionManager {
	sm := scs.New()
	switch driver {
	case "mysql":
		sm.Store = mysqlstore.New(db)
	case "sqlite3":
		sm.Store = sqlite3store.New(db)
	}
	if cfg.Lifetime > 0 {
		sm.Lifetime = time.Duration(cfg.Lifetime) * time.Hour
	}
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	return sm
}
