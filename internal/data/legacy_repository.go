package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// LegacyContactRepository reads and writes contacts through the legacy
// Airtable-backed directory API.
type LegacyContactRepository struct {
	baseURL string
	client  *http.Client
}

// NewLegacyContactRepository creates a client for the legacy API rooted at baseURL.
func NewLegacyContactRepository(baseURL string, timeout time.Duration) *LegacyContactRepository {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LegacyContactRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type legacyRecord struct {
	ID          string       `json:"id"`
	CreatedTime time.Time    `json:"createdTime"`
	Fields      legacyFields `json:"fields"`
}

type legacyFields struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Category    string `json:"Category"`
	Phone       string `json:"Phone"`
	Email       string `json:"Email"`
	Website     string `json:"Website"`
	Address     string `json:"Address"`
	Image       string `json:"Image"`
}

type legacyDirectory struct {
	Records []legacyRecord `json:"records"`
}

func (rec legacyRecord) contact() *Contact {
	return &Contact{
		ID:          rec.ID,
		Name:        rec.Fields.Name,
		Description: rec.Fields.Description,
		Category:    rec.Fields.Category,
		Phone:       rec.Fields.Phone,
		Email:       rec.Fields.Email,
		Website:     rec.Fields.Website,
		Address:     rec.Fields.Address,
		ImageURL:    rec.Fields.Image,
		CreatedAt:   rec.CreatedTime,
		UpdatedAt:   rec.CreatedTime,
	}
}

// List fetches the full directory.
func (r *LegacyContactRepository) List(ctx context.Context) ([]*Contact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/get_directory_data", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch legacy directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch legacy directory: status %d", resp.StatusCode)
	}

	var dir legacyDirectory
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, fmt.Errorf("failed to decode legacy directory: %w", err)
	}

	contacts := make([]*Contact, 0, len(dir.Records))
	for _, rec := range dir.Records {
		contacts = append(contacts, rec.contact())
	}
	return contacts, nil
}

// Get finds a contact by record ID. The legacy API has no single-record
// endpoint, so this scans the directory.
func (r *LegacyContactRepository) Get(ctx context.Context, id string) (*Contact, error) {
	contacts, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// Create submits a new entry; the API assigns the record ID.
func (r *LegacyContactRepository) Create(ctx context.Context, contact *Contact) error {
	rec, err := r.submit(ctx, "/update_directory_entry", "", contact)
	if err != nil {
		return err
	}
	if rec != nil && rec.ID != "" {
		contact.ID = rec.ID
	}
	return nil
}

// Update submits an existing entry keyed by its record ID.
func (r *LegacyContactRepository) Update(ctx context.Context, contact *Contact) error {
	_, err := r.submit(ctx, "/update_directory_entry", contact.ID, contact)
	return err
}

// Delete removes an entry keyed by its record ID.
func (r *LegacyContactRepository) Delete(ctx context.Context, id string) error {
	_, err := r.submit(ctx, "/delete_directory_entry", id, nil)
	return err
}

func (r *LegacyContactRepository) submit(ctx context.Context, path, recordID string, contact *Contact) (*legacyRecord, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	fields := map[string]string{}
	if recordID != "" {
		fields["record_id"] = recordID
	}
	if contact != nil {
		fields["Name"] = contact.Name
		fields["Description"] = contact.Description
		fields["Category"] = contact.Category
		fields["Phone"] = contact.Phone
		fields["Email"] = contact.Email
		fields["Website"] = contact.Website
		fields["Address"] = contact.Address
		fields["Image"] = contact.ImageURL
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("legacy request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("legacy request %s failed: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var rec legacyRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode legacy response: %w", err)
	}
	return &rec, nil
}
