package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"time"

	"go-directory-wiki/internal/data"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/render"

	"github.com/google/uuid"
)

// VersionStore is the row store holding every version of every page.
type VersionStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetPublished(ctx context.Context, pageID string) (*data.PageVersion, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*data.PageVersion, error)
	GetVersion(ctx context.Context, pageID string, version int) (*data.PageVersion, error)
	ListVersions(ctx context.Context, pageID string) ([]*data.PageVersion, error)
	ListPublished(ctx context.Context) ([]*data.PageVersion, error)
	ListCategoryValues(ctx context.Context) ([]string, error)
	InsertVersion(ctx context.Context, page *data.PageVersion) error
	// SetPublished flips is_published on (pageID, version) only if it currently
	// holds the opposite value, and reports the number of rows changed.
	SetPublished(ctx context.Context, pageID string, version int, published bool) (int64, error)
	DeletePage(ctx context.Context, pageID string) (int64, error)
}

// Cache is a byte-oriented TTL cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const categoriesCacheKey = "wiki:categories"

// PageServicer is the page API used by the HTTP layer.
type PageServicer interface {
	CreatePage(ctx context.Context, title, content, excerpt, category string) (*data.PageVersion, error)
	UpdateVersion(ctx context.Context, pageID string, currentVersion int, fields PageFields) (*data.PageVersion, error)
	RestoreVersion(ctx context.Context, pageID, slug string, version int) (*data.PageVersion, error)
	ListVersions(ctx context.Context, pageID string) ([]VersionEntry, error)
	GetPage(ctx context.Context, slug string) (*data.PageVersion, error)
	RenderPage(ctx context.Context, slug string) (*data.PageVersion, template.HTML, error)
	ListPages(ctx context.Context, f PageFilter) []*data.PageVersion
	DeletePage(ctx context.Context, pageID string) error
	ListCategories(ctx context.Context) []string
}

var _ PageServicer = (*PageService)(nil)

// PageFields holds the fields of an edit. Nil fields keep their current value.
type PageFields struct {
	Title    *string
	Content  *string
	Excerpt  *string
	Category *string
}

// VersionEntry is one row of a page's history.
type VersionEntry struct {
	*data.PageVersion
	IsCurrent bool `json:"is_current"`
}

// PageService coordinates page versions: every edit or restore unpublishes
// the current row and inserts the next version, re-publishing the old row
// if the insert fails.
type PageService struct {
	store    VersionStore
	cache    Cache
	notifier *Notifier
	renderer *render.Renderer
	log      logger.Logger

	timeout  time.Duration
	cacheTTL time.Duration
	now      func() time.Time
	newID    func() string
}

// PageOption configures a PageService.
type PageOption func(*PageService)

// WithStoreTimeout bounds every individual store call.
func WithStoreTimeout(d time.Duration) PageOption {
	return func(s *PageService) { s.timeout = d }
}

// WithCategoryTTL sets how long the category list stays cached.
func WithCategoryTTL(d time.Duration) PageOption {
	return func(s *PageService) { s.cacheTTL = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PageOption {
	return func(s *PageService) { s.now = now }
}

// WithIDGenerator replaces the page ID generator.
func WithIDGenerator(gen func() string) PageOption {
	return func(s *PageService) { s.newID = gen }
}

// NewPageService creates a PageService. cache and notifier may be nil.
func NewPageService(store VersionStore, cache Cache, notifier *Notifier, log logger.Logger, opts ...PageOption) *PageService {
	s := &PageService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		renderer: render.New(),
		log:      log,
		timeout:  10 * time.Second,
		cacheTTL: 5 * time.Minute,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewNotifier()
	}
	return s
}

// Subscribe returns a subscription to committed page changes.
func (s *PageService) Subscribe() *Subscription {
	return s.notifier.Subscribe()
}

// call runs fn under the store timeout.
func (s *PageService) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}

// readErr classifies a failed read.
func readErr(op, resource, key string, err error) error {
	var timeout *TimeoutError
	switch {
	case errors.As(err, &timeout):
		return err
	case errors.Is(err, data.ErrNotFound):
		return &NotFoundError{Resource: resource, Key: key}
	default:
		return &TransientStoreError{Op: op, Err: err}
	}
}

func (s *PageService) getPublished(ctx context.Context, pageID string) (*data.PageVersion, error) {
	var page *data.PageVersion
	err := s.call(ctx, "get published page", func(ctx context.Context) error {
		var err error
		page, err = s.store.GetPublished(ctx, pageID)
		return err
	})
	if err != nil {
		return nil, readErr("get published page", "page", pageID, err)
	}
	return page, nil
}

// CreatePage stores version 0 of a new page, published.
func (s *PageService) CreatePage(ctx context.Context, title, content, excerpt, category string) (*data.PageVersion, error) {
	title = cleanText(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "is required"}
	}
	slug := Slugify(title)
	if slug == "" {
		return nil, &ValidationError{Field: "title", Message: "must contain at least one letter or digit"}
	}

	var exists bool
	err := s.call(ctx, "check slug", func(ctx context.Context) error {
		var err error
		exists, err = s.store.SlugExists(ctx, slug)
		return err
	})
	if err != nil {
		return nil, readErr("check slug", "page", slug, err)
	}
	if exists {
		return nil, &DuplicateSlugError{Slug: slug}
	}

	now := s.now().UTC()
	page := &data.PageVersion{
		ID:          s.newID(),
		Slug:        slug,
		Title:       title,
		Content:     content,
		Excerpt:     cleanText(excerpt),
		Category:    categoryOrDefault(category),
		Version:     0,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.call(ctx, "insert page", func(ctx context.Context) error {
		return s.store.InsertVersion(ctx, page)
	})
	if err != nil {
		// The store's unique (slug, version) constraint catches concurrent creates.
		if errors.Is(err, data.ErrDuplicate) {
			return nil, &DuplicateSlugError{Slug: slug, Err: err}
		}
		return nil, fmt.Errorf("failed to create page %q: %w", slug, err)
	}

	s.log.With(map[string]interface{}{"page_id": page.ID, "slug": slug}).Info("Page created")
	s.committed(ctx, PageCreated, page)
	return page, nil
}

// UpdateVersion writes fields as version currentVersion+1 of pageID.
// currentVersion must be the published version.
func (s *PageService) UpdateVersion(ctx context.Context, pageID string, currentVersion int, fields PageFields) (*data.PageVersion, error) {
	current, err := s.getPublished(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if current.Version != currentVersion {
		return nil, &StaleVersionError{PageID: pageID, Version: currentVersion, Current: current.Version}
	}

	next := *current
	if fields.Title != nil {
		next.Title = cleanText(*fields.Title)
		if next.Title == "" {
			return nil, &ValidationError{Field: "title", Message: "is required"}
		}
	}
	if fields.Content != nil {
		next.Content = *fields.Content
	}
	if fields.Excerpt != nil {
		next.Excerpt = cleanText(*fields.Excerpt)
	}
	if fields.Category != nil {
		next.Category = categoryOrDefault(*fields.Category)
	}

	return s.commitVersion(ctx, current, &next, PageUpdated)
}

// RestoreVersion re-publishes the content of an old version as a new
// version. pageID may be empty, in which case the page is found by slug.
func (s *PageService) RestoreVersion(ctx context.Context, pageID, slug string, version int) (*data.PageVersion, error) {
	var current *data.PageVersion
	var err error
	if pageID != "" {
		current, err = s.getPublished(ctx, pageID)
	} else {
		current, err = s.GetPage(ctx, slug)
	}
	if err != nil {
		return nil, err
	}

	var target *data.PageVersion
	err = s.call(ctx, "get version", func(ctx context.Context) error {
		var err error
		target, err = s.store.GetVersion(ctx, current.ID, version)
		return err
	})
	if err != nil {
		return nil, readErr("get version", "page version", fmt.Sprintf("%s@%d", current.ID, version), err)
	}

	next := *current
	next.Title = target.Title
	next.Content = target.Content
	next.Excerpt = target.Excerpt
	next.Category = target.Category

	return s.commitVersion(ctx, current, &next, PageRestored)
}

// commitVersion unpublishes current and inserts next as current.Version+1.
func (s *PageService) commitVersion(ctx context.Context, current, next *data.PageVersion, kind ChangeKind) (*data.PageVersion, error) {
	log := s.log.With(map[string]interface{}{"page_id": current.ID, "version": current.Version})

	var affected int64
	err := s.call(ctx, "unpublish version", func(ctx context.Context) error {
		var err error
		affected, err = s.store.SetPublished(ctx, current.ID, current.Version, false)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unpublish page %s version %d: %w", current.ID, current.Version, err)
	}
	if affected == 0 {
		// Someone else moved the page on between our read and the unpublish.
		return nil, &StaleVersionError{PageID: current.ID, Version: current.Version, Current: -1}
	}

	next.RowID = 0
	next.ID = current.ID
	next.Slug = current.Slug
	next.Version = current.Version + 1
	next.IsPublished = true
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now().UTC()

	insertErr := s.call(ctx, "insert version", func(ctx context.Context) error {
		return s.store.InsertVersion(ctx, next)
	})
	if insertErr != nil {
		log.Error(insertErr, "Failed to insert new page version, republishing previous version")
		if recoveryErr := s.republish(ctx, current); recoveryErr != nil {
			rf := &RecoveryFailedError{
				PageID:      current.ID,
				Version:     current.Version,
				Cause:       insertErr,
				RecoveryErr: recoveryErr,
			}
			log.Error(rf, "RECOVERY FAILED: page has no published version and needs manual repair")
			return nil, rf
		}
		return nil, fmt.Errorf("failed to save page %s version %d: %w", current.ID, next.Version, insertErr)
	}

	log.With(map[string]interface{}{"new_version": next.Version}).Info("Page version published")
	s.committed(ctx, kind, next)
	return next, nil
}

// republish restores the published flag on a row unpublished by
// commitVersion. It runs even if the caller's context is already done.
func (s *PageService) republish(ctx context.Context, page *data.PageVersion) error {
	ctx = context.WithoutCancel(ctx)
	var affected int64
	err := s.call(ctx, "republish version", func(ctx context.Context) error {
		var err error
		affected, err = s.store.SetPublished(ctx, page.ID, page.Version, true)
		return err
	})
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Nothing changed: fine only if the row is in fact published.
	var row *data.PageVersion
	err = s.call(ctx, "verify republish", func(ctx context.Context) error {
		var err error
		row, err = s.store.GetVersion(ctx, page.ID, page.Version)
		return err
	})
	if err != nil {
		return err
	}
	if !row.IsPublished {
		return fmt.Errorf("page %s version %d could not be republished", page.ID, page.Version)
	}
	return nil
}

// GetPage returns the published version of the page with slug.
func (s *PageService) GetPage(ctx context.Context, slug string) (*data.PageVersion, error) {
	var page *data.PageVersion
	err := s.call(ctx, "get page", func(ctx context.Context) error {
		var err error
		page, err = s.store.GetPublishedBySlug(ctx, slug)
		return err
	})
	if err != nil {
		return nil, readErr("get page", "page", slug, err)
	}
	return page, nil
}

// RenderPage returns the published page with slug and its content as HTML.
func (s *PageService) RenderPage(ctx context.Context, slug string) (*data.PageVersion, template.HTML, error) {
	page, err := s.GetPage(ctx, slug)
	if err != nil {
		return nil, "", err
	}
	body, err := s.renderer.Render(page.Content)
	if err != nil {
		return nil, "", err
	}
	return page, body, nil
}

// ListVersions returns every version of a page, newest first.
func (s *PageService) ListVersions(ctx context.Context, pageID string) ([]VersionEntry, error) {
	var rows []*data.PageVersion
	err := s.call(ctx, "list versions", func(ctx context.Context) error {
		var err error
		rows, err = s.store.ListVersions(ctx, pageID)
		return err
	})
	if err != nil {
		return nil, readErr("list versions", "page", pageID, err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "page", Key: pageID}
	}

	entries := make([]VersionEntry, len(rows))
	for i, row := range rows {
		entries[i] = VersionEntry{PageVersion: row, IsCurrent: row.IsPublished}
	}
	return entries, nil
}

// ListPages returns the published pages matching f. A store failure yields
// an empty list.
func (s *PageService) ListPages(ctx context.Context, f PageFilter) []*data.PageVersion {
	var pages []*data.PageVersion
	err := s.call(ctx, "list pages", func(ctx context.Context) error {
		var err error
		pages, err = s.store.ListPublished(ctx)
		return err
	})
	if err != nil {
		s.log.Error(readErr("list pages", "pages", "", err), "Failed to list pages, returning empty result")
		return []*data.PageVersion{}
	}
	return FilterPages(pages, f)
}

// DeletePage removes every version of a page.
func (s *PageService) DeletePage(ctx context.Context, pageID string) error {
	current, err := s.getPublished(ctx, pageID)
	if err != nil && !isNotFound(err) {
		return err
	}

	var removed int64
	err = s.call(ctx, "delete page", func(ctx context.Context) error {
		var err error
		removed, err = s.store.DeletePage(ctx, pageID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete page %s: %w", pageID, err)
	}
	if removed == 0 {
		return &NotFoundError{Resource: "page", Key: pageID}
	}

	s.log.With(map[string]interface{}{"page_id": pageID, "rows": removed}).Info("Page deleted")
	if current == nil {
		current = &data.PageVersion{ID: pageID}
	}
	s.committed(ctx, PageDeleted, current)
	return nil
}

// ListCategories returns every category used by any page version, plus the
// default category. Store failures degrade to the default category alone.
func (s *PageService) ListCategories(ctx context.Context) []string {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, categoriesCacheKey); err == nil && raw != nil {
			var cached []string
			if json.Unmarshal(raw, &cached) == nil {
				return cached
			}
		}
	}

	var values []string
	err := s.call(ctx, "list categories", func(ctx context.Context) error {
		var err error
		values, err = s.store.ListCategoryValues(ctx)
		return err
	})
	if err != nil {
		s.log.Error(readErr("list categories", "categories", "", err), "Failed to load categories, using default")
		return []string{data.DefaultCategory}
	}

	categories := ReconcileCategories(values)
	if s.cache != nil {
		if raw, err := json.Marshal(categories); err == nil {
			if err := s.cache.Set(ctx, categoriesCacheKey, raw, s.cacheTTL); err != nil {
				s.log.Warn("Failed to cache categories: " + err.Error())
			}
		}
	}
	return categories
}

// committed runs after every successful mutation.
func (s *PageService) committed(ctx context.Context, kind ChangeKind, page *data.PageVersion) {
	if s.cache != nil {
		if err := s.cache.Delete(context.WithoutCancel(ctx), categoriesCacheKey); err != nil {
			s.log.Warn("Failed to invalidate category cache: " + err.Error())
		}
	}
	s.notifier.Publish(ChangeEvent{
		Kind:    kind,
		ID:      page.ID,
		Slug:    page.Slug,
		Version: page.Version,
		At:      s.now().UTC(),
	})
}

func categoryOrDefault(category string) string {
	if c := cleanText(category); c != "" {
		return c
	}
	return data.DefaultCategory
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
