package auth

import (
	"fmt"

	"go-directory-wiki/internal/logger"

	"github.com/casbin/casbin/v2"
)

const (
	// RoleAnonymous is the subject used for requests without a session.
	RoleAnonymous = "anonymous"
	// RoleEditor may change pages and contacts.
	RoleEditor = "editor"
)

// SeedDefaultPolicies installs the baseline rules and grants the editor role
// to every subject in editors. It only adds what is missing, so it is safe to
// run on every start.
func SeedDefaultPolicies(e casbin.IEnforcer, editors []string, log logger.Logger) {
	log.Info("Seeding default authorization policies...")

	policies := [][]string{
		// Everyone can read.
		{RoleAnonymous, "/*", "GET"},

		{RoleEditor, "/api/*", "POST"},
		{RoleEditor, "/api/*", "PUT"},
		{RoleEditor, "/api/*", "DELETE"},
	}
	for _, p := range policies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}

	grant := func(user, role string) {
		if has, _ := e.HasRoleForUser(user, role); !has {
			if _, err := e.AddRoleForUser(user, role); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add role %q -> %q", user, role))
			}
		}
	}
	grant(RoleEditor, RoleAnonymous)
	for _, subject := range editors {
		grant(subject, RoleEditor)
	}
	log.Info(fmt.Sprintf("Policy seeding complete, %d editors configured.", len(editors)))
}
