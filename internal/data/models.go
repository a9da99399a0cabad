package data

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// DefaultCategory is the catch-all category label for pages and contacts.
const DefaultCategory = "Uncategorized"

// PageVersion is one stored version of a wiki page. All versions of a
// logical page share ID and Slug; at most one of them is published.
type PageVersion struct {
	RowID       int64     `db:"row_id" json:"-"`
	ID          string    `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Title       string    `db:"title" json:"title"`
	Content     string    `db:"content" json:"content"`
	Excerpt     string    `db:"excerpt" json:"excerpt"`
	Category    string    `db:"category" json:"category"`
	Version     int       `db:"version" json:"version"`
	IsPublished bool      `db:"is_published" json:"is_published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Contact is a local business listed in the directory.
type Contact struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Phone       string    `db:"phone" json:"phone"`
	Email       string    `db:"email" json:"email"`
	Website     string    `db:"website" json:"website"`
	Address     string    `db:"address" json:"address"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
