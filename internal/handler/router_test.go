//go:build unit

package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go-directory-wiki/internal/auth"
	"go-directory-wiki/internal/data"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/media"
	"go-directory-wiki/internal/middleware"
	"go-directory-wiki/internal/service"
	"go-directory-wiki/internal/storage"
	"go-directory-wiki/internal/view"
	"go-directory-wiki/web"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
)

const testEditor = "editor-subject"

type testApp struct {
	Router  *chi.Mux
	Session *mockSessionManager
}

// setupTest wires the full router over in-memory stores.
func setupTest(t *testing.T) *testApp {
	t.Helper()
	return setupTestWith(t, data.NewMemoryContactRepository(data.FixtureContacts()...))
}

// setupTestWith wires the full router with contacts as the directory store.
func setupTestWith(t *testing.T, contacts service.ContactRepository) *testApp {
	t.Helper()
	log := logger.Nop()

	viewService, err := view.New(web.TemplateFS)
	if err != nil {
		t.Fatalf("Failed to parse templates: %v", err)
	}

	notifier := service.NewNotifier()

	pages := service.NewPageService(data.NewMemoryPageRepository(data.FixturePages()...), nil, notifier, log)
	objects := storage.New(afero.NewMemMapFs(), "http://example.com/media")
	directory := service.NewDirectoryService(contacts, objects, media.NewProcessor(64, 80), notifier, log, 0)

	enforcer, err := auth.NewEnforcer("memory", "")
	if err != nil {
		t.Fatalf("Failed to create enforcer: %v", err)
	}
	auth.SeedDefaultPolicies(enforcer, []string{testEditor}, log)

	sm := &mockSessionManager{}
	router := NewRouter(Handlers{
		Pages:     NewPageHandler(pages, viewService, log),
		Directory: NewDirectoryHandler(directory, log),
		Events:    NewEventsHandler(notifier, 0, log),
		Auth:      NewAuthHandler(nil, sm, log),
		Seo:       NewSeoHandler(pages, "http://example.com"),
		Media:     objects.Handler(),
	}, middleware.Authorizer(enforcer, sm, log), middleware.Error(log, viewService), sm)

	return &testApp{Router: router, Session: sm}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (app *testApp) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)

	var env envelope
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: invalid JSON response: %v", method, path, err)
		}
	}
	return rr, env
}

func TestAuthzMiddleware(t *testing.T) {
	app := setupTest(t)

	testCases := []struct {
		name       string
		subject    string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"Anonymous can list pages", "", "GET", "/api/wiki/pages", "", http.StatusOK},
		{"Anonymous can view page", "", "GET", "/wiki/welcome", "", http.StatusOK},
		{"Anonymous cannot create page", "", "POST", "/api/wiki/pages", `{"title":"Nope"}`, http.StatusForbidden},
		{"Anonymous cannot delete contact", "", "DELETE", "/api/directory/contacts/rec-apple", "", http.StatusForbidden},
		{"Unknown subject falls back to anonymous", "stranger", "GET", "/api/directory/contacts", "", http.StatusOK},
		{"Unknown subject cannot write", "stranger", "PUT", "/api/directory/contacts/rec-apple", `{"name":"x"}`, http.StatusForbidden},
		{"Editor can create page", testEditor, "POST", "/api/wiki/pages", `{"title":"Allowed"}`, http.StatusCreated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app.Session.subject = tc.subject
			rr, _ := app.do(t, tc.method, tc.path, tc.body)
			if rr.Code != tc.wantStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tc.wantStatus)
			}
		})
	}
}

func TestPageLifecycle(t *testing.T) {
	app := setupTest(t)
	app.Session.subject = testEditor

	rr, env := app.do(t, "POST", "/api/wiki/pages", `{"title":"Opening Hours","content":"Mon-Fri 9-5","category":"Guides"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: want %d; got %d (%s)", http.StatusCreated, rr.Code, env.Error)
	}
	var page data.PageVersion
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Slug != "opening-hours" || page.Version != 0 || !page.IsPublished {
		t.Fatalf("unexpected created page: %+v", page)
	}

	rr, _ = app.do(t, "POST", "/api/wiki/pages", `{"title":"Opening Hours"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate create: want %d; got %d", http.StatusConflict, rr.Code)
	}

	rr, _ = app.do(t, "POST", "/api/wiki/pages", `{"content":"no title"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing title: want %d; got %d", http.StatusBadRequest, rr.Code)
	}

	rr, env = app.do(t, "PUT", "/api/wiki/pages/opening-hours", `{"current_version":0,"content":"Mon-Sat 9-6"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: want %d; got %d (%s)", http.StatusOK, rr.Code, env.Error)
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Version != 1 || page.Content != "Mon-Sat 9-6" || page.Category != "Guides" {
		t.Errorf("unexpected updated page: %+v", page)
	}

	rr, _ = app.do(t, "PUT", "/api/wiki/pages/opening-hours", `{"current_version":0,"content":"stale edit"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("stale update: want %d; got %d", http.StatusConflict, rr.Code)
	}

	rr, _ = app.do(t, "PUT", "/api/wiki/pages/opening-hours", `{"content":"no version"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("update without current_version: want %d; got %d", http.StatusBadRequest, rr.Code)
	}

	rr, env = app.do(t, "GET", "/api/wiki/pages/opening-hours/versions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("versions: want %d; got %d", http.StatusOK, rr.Code)
	}
	var versions []struct {
		Version   int  `json:"version"`
		IsCurrent bool `json:"is_current"`
	}
	if err := json.Unmarshal(env.Data, &versions); err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("want 2 versions; got %d", len(versions))
	}
	for _, v := range versions {
		if v.IsCurrent != (v.Version == 1) {
			t.Errorf("version %d: is_current = %v", v.Version, v.IsCurrent)
		}
	}

	rr, env = app.do(t, "POST", "/api/wiki/pages/opening-hours/versions/0/restore", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: want %d; got %d (%s)", http.StatusOK, rr.Code, env.Error)
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatal(err)
	}
	if page.Version != 2 || page.Content != "Mon-Fri 9-5" {
		t.Errorf("unexpected restored page: %+v", page)
	}

	rr, _ = app.do(t, "POST", "/api/wiki/pages/opening-hours/versions/9/restore", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("restore missing version: want %d; got %d", http.StatusNotFound, rr.Code)
	}
	rr, _ = app.do(t, "POST", "/api/wiki/pages/opening-hours/versions/abc/restore", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("restore bad version: want %d; got %d", http.StatusBadRequest, rr.Code)
	}

	rr, env = app.do(t, "GET", "/api/wiki/categories", "")
	if rr.Code != http.StatusOK || !strings.Contains(string(env.Data), "Guides") {
		t.Errorf("categories: got %d %s", rr.Code, env.Data)
	}

	rr, _ = app.do(t, "DELETE", "/api/wiki/pages/opening-hours", "")
	if rr.Code != http.StatusOK {
		t.Errorf("delete: want %d; got %d", http.StatusOK, rr.Code)
	}
	rr, env = app.do(t, "GET", "/api/wiki/pages/opening-hours", "")
	if rr.Code != http.StatusNotFound || env.Success {
		t.Errorf("get deleted page: want %d; got %d", http.StatusNotFound, rr.Code)
	}
}

func TestListPagesFilter(t *testing.T) {
	app := setupTest(t)

	_, env := app.do(t, "GET", "/api/wiki/pages?category=Directory", "")
	var pages []data.PageVersion
	if err := json.Unmarshal(env.Data, &pages); err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].Slug != "listing-guidelines" {
		t.Errorf("want only listing-guidelines; got %+v", pages)
	}
}

func TestViewHandler(t *testing.T) {
	app := setupTest(t)

	rr, _ := app.do(t, "GET", "/wiki/welcome", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("want %d; got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("want HTML content type; got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<h2") || !strings.Contains(rr.Body.String(), "local businesses") {
		t.Errorf("rendered body missing content: %s", rr.Body.String())
	}

	rr, _ = app.do(t, "GET", "/wiki/no-such-page", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing page: want %d; got %d", http.StatusNotFound, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<h1>404</h1>") {
		t.Errorf("want HTML error page; got %s", rr.Body.String())
	}
}

func TestSeoHandlers(t *testing.T) {
	app := setupTest(t)

	rr, _ := app.do(t, "GET", "/sitemap.xml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("sitemap: want %d; got %d", http.StatusOK, rr.Code)
	}
	for _, want := range []string{"http://example.com/wiki/welcome", "http://example.com/wiki/listing-guidelines", "2024-01-15"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("sitemap missing %q", want)
		}
	}

	rr, _ = app.do(t, "GET", "/robots.txt", "")
	if !strings.Contains(rr.Body.String(), "Sitemap: http://example.com/sitemap.xml") {
		t.Errorf("robots.txt missing sitemap line: %s", rr.Body.String())
	}
}

func TestContactEndpoints(t *testing.T) {
	app := setupTest(t)
	app.Session.subject = testEditor

	rr, env := app.do(t, "GET", "/api/directory/contacts?category=Food", "")
	var contacts []data.Contact
	if err := json.Unmarshal(env.Data, &contacts); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || len(contacts) != 2 {
		t.Errorf("filter by Food: got %d contacts", len(contacts))
	}

	rr, env = app.do(t, "GET", "/api/directory/contacts?q=apple", "")
	contacts = nil
	json.Unmarshal(env.Data, &contacts)
	if len(contacts) != 1 || contacts[0].ID != "rec-apple" {
		t.Errorf("search apple: got %+v", contacts)
	}

	rr, _ = app.do(t, "POST", "/api/directory/contacts", `{"name":"Bad Email","email":"not-an-email"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid email: want %d; got %d", http.StatusBadRequest, rr.Code)
	}

	rr, env = app.do(t, "POST", "/api/directory/contacts", `{"name":"Town Library","category":"Service","email":"desk@library.example"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create contact: want %d; got %d (%s)", http.StatusCreated, rr.Code, env.Error)
	}
	var created data.Contact
	json.Unmarshal(env.Data, &created)

	rr, _ = app.do(t, "PUT", "/api/directory/contacts/"+created.ID, `{"name":"Town Library","category":"Education"}`)
	if rr.Code != http.StatusOK {
		t.Errorf("update contact: want %d; got %d", http.StatusOK, rr.Code)
	}

	rr, env = app.do(t, "GET", "/api/directory/categories", "")
	if !strings.Contains(string(env.Data), "Education") || !strings.Contains(string(env.Data), "All") {
		t.Errorf("categories: got %s", env.Data)
	}

	rr, _ = app.do(t, "DELETE", "/api/directory/contacts/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Errorf("delete contact: want %d; got %d", http.StatusOK, rr.Code)
	}
	rr, _ = app.do(t, "GET", "/api/directory/contacts/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("get deleted contact: want %d; got %d", http.StatusNotFound, rr.Code)
	}
}

func multipartImage(t *testing.T, field string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(payload)
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestImageUpload(t *testing.T) {
	app := setupTest(t)
	app.Session.subject = testEditor

	img := image.NewRGBA(image.Rect(0, 0, 128, 32))
	for x := 0; x < 128; x++ {
		img.Set(x, x%32, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	body, contentType := multipartImage(t, "image", buf.Bytes())
	req := httptest.NewRequest("POST", "/api/directory/contacts/rec-bakery/image", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: want %d; got %d (%s)", http.StatusOK, rr.Code, rr.Body.String())
	}

	var env envelope
	json.Unmarshal(rr.Body.Bytes(), &env)
	var contact data.Contact
	json.Unmarshal(env.Data, &contact)
	if !strings.HasPrefix(contact.ImageURL, "http://example.com/media/contacts/rec-bakery") {
		t.Fatalf("unexpected image URL %q", contact.ImageURL)
	}

	u, _ := url.Parse(contact.ImageURL)
	rr, _ = app.do(t, "GET", u.Path, "")
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Errorf("serving uploaded image: got %d with %d bytes", rr.Code, rr.Body.Len())
	}

	body, contentType = multipartImage(t, "image", []byte("plain text is not an image"))
	req = httptest.NewRequest("POST", "/api/directory/contacts/rec-bakery/image", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-image upload: want %d; got %d", http.StatusBadRequest, rr.Code)
	}

	body, contentType = multipartImage(t, "photo", buf.Bytes())
	req = httptest.NewRequest("POST", "/api/directory/contacts/rec-bakery/image", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("wrong field name: want %d; got %d", http.StatusBadRequest, rr.Code)
	}
}

// legacyDirectory is an in-process stand-in for the legacy directory API. It
// records every multipart submission.
type legacyDirectory struct {
	mu      sync.Mutex
	posted  []map[string]string
	records []map[string]interface{}
}

func newLegacyDirectory(t *testing.T) (*legacyDirectory, *httptest.Server) {
	t.Helper()
	dir := &legacyDirectory{records: []map[string]interface{}{
		{"id": "recA", "fields": map[string]string{"Name": "Corner Bakery", "Category": "Food"}},
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/get_directory_data", func(w http.ResponseWriter, r *http.Request) {
		dir.mu.Lock()
		defer dir.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]interface{}{"records": dir.records})
	})
	submit := func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields := map[string]string{"path": r.URL.Path}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		dir.mu.Lock()
		dir.posted = append(dir.posted, fields)
		dir.mu.Unlock()

		id := fields["record_id"]
		if id == "" {
			id = "recNew"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": id})
	}
	mux.HandleFunc("/update_directory_entry", submit)
	mux.HandleFunc("/delete_directory_entry", submit)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return dir, srv
}

func (d *legacyDirectory) submissions() []map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]map[string]string(nil), d.posted...)
}

func TestContactEndpoints_LegacyDirectory(t *testing.T) {
	legacy, srv := newLegacyDirectory(t)
	app := setupTestWith(t, data.NewLegacyContactRepository(srv.URL, time.Second))
	app.Session.subject = testEditor

	rr, env := app.do(t, "GET", "/api/directory/contacts", "")
	if rr.Code != http.StatusOK || !strings.Contains(string(env.Data), "Corner Bakery") {
		t.Fatalf("list: got %d %s", rr.Code, env.Data)
	}

	rr, env = app.do(t, "POST", "/api/directory/contacts", `{"name":"Hardware Store","category":"Shops","phone":"555-0199"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: want %d; got %d (%s)", http.StatusCreated, rr.Code, env.Error)
	}
	var created data.Contact
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.ID != "recNew" {
		t.Errorf("expected the record id assigned by the legacy API, got %q", created.ID)
	}

	rr, env = app.do(t, "PUT", "/api/directory/contacts/recA", `{"name":"Corner Bakery Cafe","category":"Food"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: want %d; got %d (%s)", http.StatusOK, rr.Code, env.Error)
	}

	rr, env = app.do(t, "DELETE", "/api/directory/contacts/recA", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: want %d; got %d (%s)", http.StatusOK, rr.Code, env.Error)
	}

	got := legacy.submissions()
	if len(got) != 3 {
		t.Fatalf("expected 3 legacy submissions, got %d: %v", len(got), got)
	}
	if got[0]["path"] != "/update_directory_entry" || got[0]["record_id"] != "" || got[0]["Name"] != "Hardware Store" || got[0]["Phone"] != "555-0199" {
		t.Errorf("unexpected create submission: %v", got[0])
	}
	if got[1]["path"] != "/update_directory_entry" || got[1]["record_id"] != "recA" || got[1]["Name"] != "Corner Bakery Cafe" {
		t.Errorf("unexpected update submission: %v", got[1])
	}
	if got[2]["path"] != "/delete_directory_entry" || got[2]["record_id"] != "recA" {
		t.Errorf("unexpected delete submission: %v", got[2])
	}
}
