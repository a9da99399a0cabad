//go:build unit

package data

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-directory-wiki/internal/logger"
)

func newLegacyServer(t *testing.T, posted *[]map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/get_directory_data", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"records": []map[string]interface{}{
				{"id": "rec1", "fields": map[string]string{"Name": "Apple Inc", "Description": "Technology company", "Category": "Service"}},
				{"id": "rec2", "fields": map[string]string{"Name": "Corner Bakery", "Category": "Food", "Image": "https://img.example/b.jpg"}},
			},
		})
	})
	record := func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields := map[string]string{"path": r.URL.Path}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		*posted = append(*posted, fields)
		if fields["record_id"] == "missing" {
			http.NotFound(w, r)
			return
		}
		id := fields["record_id"]
		if id == "" {
			id = "recNew"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": id})
	}
	mux.HandleFunc("/update_directory_entry", record)
	mux.HandleFunc("/delete_directory_entry", record)
	return httptest.NewServer(mux)
}

func TestLegacyContactRepository_List(t *testing.T) {
	var posted []map[string]string
	srv := newLegacyServer(t, &posted)
	defer srv.Close()

	repo := NewLegacyContactRepository(srv.URL+"/", time.Second)
	contacts, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	if contacts[0].Name != "Apple Inc" || contacts[0].Category != "Service" {
		t.Errorf("unexpected first contact: %+v", contacts[0])
	}
	if contacts[1].ImageURL != "https://img.example/b.jpg" {
		t.Errorf("expected image url to map from Image field, got %q", contacts[1].ImageURL)
	}

	got, err := repo.Get(context.Background(), "rec2")
	if err != nil || got.Name != "Corner Bakery" {
		t.Errorf("expected Corner Bakery, got %+v (%v)", got, err)
	}
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyContactRepository_Writes(t *testing.T) {
	var posted []map[string]string
	srv := newLegacyServer(t, &posted)
	defer srv.Close()
	repo := NewLegacyContactRepository(srv.URL, time.Second)
	ctx := context.Background()

	contact := &Contact{Name: "Riverside Cafe", Category: "Food"}
	if err := repo.Create(ctx, contact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contact.ID != "recNew" {
		t.Errorf("expected assigned id recNew, got %q", contact.ID)
	}

	contact.Phone = "555-0103"
	if err := repo.Update(ctx, contact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, "recNew"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if len(posted) != 4 {
		t.Fatalf("expected 4 submissions, got %d", len(posted))
	}
	if _, ok := posted[0]["record_id"]; ok {
		t.Error("create must not send a record_id")
	}
	if posted[1]["record_id"] != "recNew" || posted[1]["Phone"] != "555-0103" {
		t.Errorf("unexpected update submission: %v", posted[1])
	}
	if posted[2]["path"] != "/delete_directory_entry" || posted[2]["record_id"] != "recNew" {
		t.Errorf("unexpected delete submission: %v", posted[2])
	}
}

type failingContactStore struct {
	MemoryContactRepository
	err error
}

func (f *failingContactStore) List(ctx context.Context) ([]*Contact, error) { return nil, f.err }
func (f *failingContactStore) Get(ctx context.Context, id string) (*Contact, error) {
	return nil, f.err
}

func TestFallbackContactRepository(t *testing.T) {
	primary := &failingContactStore{err: errors.New("connection refused")}
	legacy := NewMemoryContactRepository(FixtureContacts()...)
	repo := NewFallbackContactRepository(primary, legacy, logger.Nop())
	ctx := context.Background()

	contacts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("expected fallback read to succeed, got %v", err)
	}
	if len(contacts) != len(FixtureContacts()) {
		t.Errorf("expected legacy contacts, got %d", len(contacts))
	}

	if _, err := repo.Get(ctx, "rec-apple"); err != nil {
		t.Errorf("expected fallback get to succeed, got %v", err)
	}

	// Writes stay on the primary store.
	if err := repo.Create(ctx, &Contact{ID: "new"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := legacy.Get(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Error("expected create not to reach the legacy store")
	}
}

func TestFallbackContactRepository_BothStoresFail(t *testing.T) {
	primaryErr := errors.New("connection refused")
	legacyErr := errors.New("legacy api unreachable")
	repo := NewFallbackContactRepository(
		&failingContactStore{err: primaryErr},
		&failingContactStore{err: legacyErr},
		logger.Nop(),
	)
	ctx := context.Background()

	if _, err := repo.List(ctx); !errors.Is(err, primaryErr) || !errors.Is(err, legacyErr) {
		t.Errorf("expected list to report both failures, got %v", err)
	}
	if _, err := repo.Get(ctx, "rec-apple"); !errors.Is(err, primaryErr) || !errors.Is(err, legacyErr) {
		t.Errorf("expected get to report both failures, got %v", err)
	}
}
