package middleware

import (
	"net/http"

	"go-directory-wiki/internal/auth"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/response"
	"go-directory-wiki/internal/session"

	"github.com/casbin/casbin/v2"
)

// Authorizer creates a new middleware for authorization.
// It checks the user's permissions using Casbin based on session data.
// Authenticated users without a matching rule of their own fall back to the
// anonymous rules.
func Authorizer(e casbin.IEnforcer, sm session.Manager, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := sm.GetString(r.Context(), session.SubjectKey)
			if subject == "" {
				subject = auth.RoleAnonymous
			}

			userInfo := &UserInfo{Subject: subject}
			if roles, err := e.GetImplicitRolesForUser(subject); err == nil {
				userInfo.Roles = roles
			}
			r = r.WithContext(SetUserInfo(r.Context(), userInfo))

			allowed, err := e.Enforce(subject, r.URL.Path, r.Method)
			if err == nil && !allowed && subject != auth.RoleAnonymous {
				allowed, err = e.Enforce(auth.RoleAnonymous, r.URL.Path, r.Method)
			}
			if err != nil {
				log.Error(err, "Authorization check failed")
				response.Error(w, http.StatusInternalServerError, "Authorization error")
				return
			}

			if !allowed {
				response.Forbidden(w, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
