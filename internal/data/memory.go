package data

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryPageRepository is an in-process page version store used when no
// database is configured. It enforces the same (id, version) and
// (slug, version) uniqueness as the SQL schema.
type MemoryPageRepository struct {
	mu     sync.Mutex
	rows   []*PageVersion
	nextID int64
}

// NewMemoryPageRepository creates a store seeded with the given rows.
func NewMemoryPageRepository(seed ...*PageVersion) *MemoryPageRepository {
	r := &MemoryPageRepository{}
	for _, p := range seed {
		// Seed rows are trusted fixtures; a duplicate here is a programming error.
		if err := r.InsertVersion(context.Background(), p); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *MemoryPageRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryPageRepository) GetPublished(ctx context.Context, pageID string) (*PageVersion, error) {
	return r.findOne(func(p *PageVersion) bool { return p.ID == pageID && p.IsPublished })
}

func (r *MemoryPageRepository) GetPublishedBySlug(ctx context.Context, slug string) (*PageVersion, error) {
	return r.findOne(func(p *PageVersion) bool { return p.Slug == slug && p.IsPublished })
}

func (r *MemoryPageRepository) GetVersion(ctx context.Context, pageID string, version int) (*PageVersion, error) {
	return r.findOne(func(p *PageVersion) bool { return p.ID == pageID && p.Version == version })
}

func (r *MemoryPageRepository) findOne(match func(*PageVersion) bool) (*PageVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *PageVersion
	for _, row := range r.rows {
		if match(row) && (found == nil || row.Version > found.Version) {
			found = row
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *MemoryPageRepository) ListVersions(ctx context.Context, pageID string) ([]*PageVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*PageVersion
	for _, row := range r.rows {
		if row.ID == pageID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *MemoryPageRepository) ListPublished(ctx context.Context) ([]*PageVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*PageVersion
	for _, row := range r.rows {
		if row.IsPublished {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryPageRepository) ListCategoryValues(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row.Category)
	}
	return out, nil
}

func (r *MemoryPageRepository) InsertVersion(ctx context.Context, page *PageVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.Version == page.Version && (row.ID == page.ID || row.Slug == page.Slug) {
			return fmt.Errorf("page %s version %d: %w", page.ID, page.Version, ErrDuplicate)
		}
	}
	r.nextID++
	page.RowID = r.nextID
	cp := *page
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MemoryPageRepository) SetPublished(ctx context.Context, pageID string, version int, published bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == pageID && row.Version == version && row.IsPublished != published {
			row.IsPublished = published
			return 1, nil
		}
	}
	return 0, nil
}

func (r *MemoryPageRepository) DeletePage(ctx context.Context, pageID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var n int64
	for _, row := range r.rows {
		if row.ID == pageID {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}

// MemoryContactRepository is an in-process contact store used when no
// database is configured.
type MemoryContactRepository struct {
	mu       sync.Mutex
	contacts []*Contact
}

// NewMemoryContactRepository creates a store seeded with the given contacts.
func NewMemoryContactRepository(seed ...*Contact) *MemoryContactRepository {
	r := &MemoryContactRepository{}
	for _, c := range seed {
		cp := *c
		r.contacts = append(r.contacts, &cp)
	}
	return r
}

func (r *MemoryContactRepository) List(ctx context.Context) ([]*Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryContactRepository) Get(ctx context.Context, id string) (*Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryContactRepository) Create(ctx context.Context, contact *Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID == contact.ID {
			return fmt.Errorf("contact %s: %w", contact.ID, ErrDuplicate)
		}
	}
	cp := *contact
	r.contacts = append(r.contacts, &cp)
	return nil
}

func (r *MemoryContactRepository) Update(ctx context.Context, contact *Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.contacts {
		if c.ID == contact.ID {
			cp := *contact
			r.contacts[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryContactRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.contacts {
		if c.ID == id {
			r.contacts = append(r.contacts[:i], r.contacts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// FixturePages returns the sample wiki content served in memory mode.
func FixturePages() []*PageVersion {
	created := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	return []*PageVersion{
		{
			ID:          "6f1d2a4e-0c3b-4d55-9a51-6a9f3f7e2b10",
			Slug:        "welcome",
			Title:       "Welcome",
			Content:     `{"blocks":[{"type":"header","data":{"text":"Welcome","level":2}},{"type":"paragraph","data":{"text":"This wiki collects guides for local businesses."}}]}`,
			Excerpt:     "Start here.",
			Category:    "General",
			Version:     0,
			IsPublished: true,
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		{
			ID:          "a3c8e0b9-5f27-4e0e-8d1c-2b7e4f6a9c31",
			Slug:        "listing-guidelines",
			Title:       "Listing Guidelines",
			Content:     `{"blocks":[{"type":"paragraph","data":{"text":"Every listing needs a name, a category and a short description."}}]}`,
			Excerpt:     "What a directory entry needs.",
			Category:    "Directory",
			Version:     0,
			IsPublished: true,
			CreatedAt:   created.Add(time.Hour),
			UpdatedAt:   created.Add(time.Hour),
		},
	}
}

// FixtureContacts returns the sample directory served in memory mode.
func FixtureContacts() []*Contact {
	created := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	return []*Contact{
		{ID: "rec-apple", Name: "Apple Inc", Description: "Technology company", Category: "Service", Phone: "555-0100", Website: "https://www.apple.com", CreatedAt: created, UpdatedAt: created},
		{ID: "rec-bakery", Name: "Corner Bakery", Description: "Fresh bread and pastries", Category: "Food", Phone: "555-0101", Address: "12 Main St", CreatedAt: created, UpdatedAt: created},
		{ID: "rec-hardware", Name: "Main Street Hardware", Description: "Tools, paint and garden supplies", Category: "Retail", Phone: "555-0102", Address: "40 Main St", CreatedAt: created, UpdatedAt: created},
		{ID: "rec-cafe", Name: "Riverside Cafe", Description: "Coffee and light lunches", Category: "Food", Phone: "555-0103", Address: "3 River Rd", CreatedAt: created, UpdatedAt: created},
	}
}
