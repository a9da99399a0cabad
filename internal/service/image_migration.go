package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-directory-wiki/internal/logger"
)

// Fetcher downloads a remote file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches files over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// MigrationResult is the outcome for one contact.
type MigrationResult struct {
	ContactID string
	SourceURL string
	NewURL    string
	Skipped   bool
	Err       error
}

// ImageMigrator copies externally hosted contact images into object storage.
type ImageMigrator struct {
	directory *DirectoryService
	fetcher   Fetcher
	isLocal   func(url string) bool
	log       logger.Logger
}

// NewImageMigrator creates an ImageMigrator. isLocal reports whether an image
// URL already points into object storage.
func NewImageMigrator(directory *DirectoryService, fetcher Fetcher, isLocal func(string) bool, log logger.Logger) *ImageMigrator {
	return &ImageMigrator{directory: directory, fetcher: fetcher, isLocal: isLocal, log: log}
}

// Run migrates every contact one at a time. A failing contact is recorded in
// its result and does not stop the run. The returned error is set only when
// the contact list cannot be read or ctx ends.
func (m *ImageMigrator) Run(ctx context.Context) ([]MigrationResult, error) {
	contacts, err := m.directory.ListContacts(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]MigrationResult, 0, len(contacts))
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := MigrationResult{ContactID: c.ID, SourceURL: c.ImageURL}
		if c.ImageURL == "" || m.isLocal(c.ImageURL) {
			res.Skipped = true
			results = append(results, res)
			continue
		}

		res.NewURL, res.Err = m.migrate(ctx, c.ID, c.ImageURL)
		log := m.log.With(map[string]interface{}{"contact_id": c.ID, "source": c.ImageURL})
		if res.Err != nil {
			log.Error(res.Err, "Image migration failed")
		} else {
			log.Info("Image migrated")
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *ImageMigrator) migrate(ctx context.Context, id, url string) (string, error) {
	body, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer body.Close()

	contact, err := m.directory.UploadImage(ctx, id, body)
	if err != nil {
		return "", err
	}
	return contact.ImageURL, nil
}
