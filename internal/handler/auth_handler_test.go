//go:build unit

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/session"
)

// mockSessionManager is a mock implementation of the session.Manager interface.
type mockSessionManager struct {
	subject       string
	destroyCalled bool
	renewCalled   bool
	putKey        string
	putValue      interface{}
}

// Ensure mockSessionManager implements the session.Manager interface.
var _ session.Manager = (*mockSessionManager)(nil)

func (m *mockSessionManager) LoadAndSave(next http.Handler) http.Handler { return next }
func (m *mockSessionManager) Put(ctx context.Context, key string, val interface{}) {
	m.putKey = key
	m.putValue = val
}
func (m *mockSessionManager) GetString(ctx context.Context, key string) string {
	if key == session.SubjectKey {
		return m.subject
	}
	return ""
}
func (m *mockSessionManager) PopString(ctx context.Context, key string) string { return "" }
func (m *mockSessionManager) Remove(ctx context.Context, key string)           {}
func (m *mockSessionManager) RenewToken(ctx context.Context) error {
	m.renewCalled = true
	return nil
}
func (m *mockSessionManager) Destroy(ctx context.Context) error {
	m.destroyCalled = true
	return nil
}

func TestLogoutHandler(t *testing.T) {
	// Arrange
	mockSession := &mockSessionManager{}
	// The authenticator is not used by the logout handler.
	authHandler := NewAuthHandler(nil, mockSession, logger.Nop())

	req := httptest.NewRequest("GET", "/auth/logout", nil)
	rr := httptest.NewRecorder()

	// Act
	authHandler.handleLogout(rr, req)

	// Assert
	if !mockSession.destroyCalled {
		t.Error("expected session.Destroy to be called, but it wasn't")
	}

	if rr.Code != http.StatusFound {
		t.Errorf("want status code %d; got %d", http.StatusFound, rr.Code)
	}

	location, err := rr.Result().Location()
	if err != nil {
		t.Fatalf("could not get redirect location: %v", err)
	}
	if location.Path != "/" {
		t.Errorf("want redirect to '/'; got '%s'", location.Path)
	}
}

func TestLoginWithoutProvider(t *testing.T) {
	authHandler := NewAuthHandler(nil, &mockSessionManager{}, logger.Nop())

	for _, path := range []string{"/auth/login", "/auth/callback?code=x&state=y"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		if path == "/auth/login" {
			authHandler.handleLogin(rr, req)
		} else {
			authHandler.handleCallback(rr, req)
		}
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: want status %d; got %d", path, http.StatusNotFound, rr.Code)
		}
	}
}

func TestRandString(t *testing.T) {
	a, err := randString(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := randString(16)
	if a == b {
		t.Error("expected two random strings to differ")
	}
	if len(a) != 22 {
		t.Errorf("want 22 characters for 16 bytes; got %d", len(a))
	}
}
