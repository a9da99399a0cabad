package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const pageVersionColumns = `row_id, id, slug, title, content, excerpt, category, version, is_published, created_at, updated_at`

// SQLPageRepository stores page versions in the page_versions table using sqlx.
type SQLPageRepository struct {
	db *sqlx.DB
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db}
}

// SlugExists reports whether any version of any page uses slug.
func (r *SQLPageRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM page_versions WHERE slug = ?`, slug); err != nil {
		return false, fmt.Errorf("failed to count pages by slug: %w", err)
	}
	return count > 0, nil
}

// GetPublished returns the published version of a page.
func (r *SQLPageRepository) GetPublished(ctx context.Context, pageID string) (*PageVersion, error) {
	query := `SELECT ` + pageVersionColumns + ` FROM page_versions WHERE id = ? AND is_published = ? ORDER BY version DESC LIMIT 1`
	return r.getOne(ctx, query, pageID, true)
}

// GetPublishedBySlug returns the published version of the page with slug.
func (r *SQLPageRepository) GetPublishedBySlug(ctx context.Context, slug string) (*PageVersion, error) {
	query := `SELECT ` + pageVersionColumns + ` FROM page_versions WHERE slug = ? AND is_published = ? ORDER BY version DESC LIMIT 1`
	return r.getOne(ctx, query, slug, true)
}

// GetVersion returns a single version of a page.
func (r *SQLPageRepository) GetVersion(ctx context.Context, pageID string, version int) (*PageVersion, error) {
	query := `SELECT ` + pageVersionColumns + ` FROM page_versions WHERE id = ? AND version = ?`
	return r.getOne(ctx, query, pageID, version)
}

func (r *SQLPageRepository) getOne(ctx context.Context, query string, args ...interface{}) (*PageVersion, error) {
	var page PageVersion
	if err := r.db.GetContext(ctx, &page, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get page version: %w", err)
	}
	return &page, nil
}

// ListVersions returns every version of a page, newest first.
func (r *SQLPageRepository) ListVersions(ctx context.Context, pageID string) ([]*PageVersion, error) {
	var pages []*PageVersion
	query := `SELECT ` + pageVersionColumns + ` FROM page_versions WHERE id = ? ORDER BY version DESC`
	if err := r.db.SelectContext(ctx, &pages, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to list page versions: %w", err)
	}
	return pages, nil
}

// ListPublished returns the published version of every page, most recently updated first.
func (r *SQLPageRepository) ListPublished(ctx context.Context) ([]*PageVersion, error) {
	var pages []*PageVersion
	query := `SELECT ` + pageVersionColumns + ` FROM page_versions WHERE is_published = ? ORDER BY updated_at DESC`
	if err := r.db.SelectContext(ctx, &pages, query, true); err != nil {
		return nil, fmt.Errorf("failed to list published pages: %w", err)
	}
	return pages, nil
}

// ListCategoryValues returns the category of every stored row in insertion order.
func (r *SQLPageRepository) ListCategoryValues(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.SelectContext(ctx, &categories, `SELECT category FROM page_versions ORDER BY row_id`); err != nil {
		return nil, fmt.Errorf("failed to list page categories: %w", err)
	}
	return categories, nil
}

// InsertVersion inserts a new page version row.
func (r *SQLPageRepository) InsertVersion(ctx context.Context, page *PageVersion) error {
	query := `INSERT INTO page_versions (id, slug, title, content, excerpt, category, version, is_published, created_at, updated_at)
		VALUES (:id, :slug, :title, :content, :excerpt, :category, :version, :is_published, :created_at, :updated_at)`
	res, err := r.db.NamedExecContext(ctx, query, page)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("page %s version %d: %w", page.ID, page.Version, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert page version: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		page.RowID = id
	}
	return nil
}

// SetPublished flips is_published on exactly the (pageID, version) row, and
// only if it currently holds the opposite value. It returns the number of
// rows changed.
func (r *SQLPageRepository) SetPublished(ctx context.Context, pageID string, version int, published bool) (int64, error) {
	query := `UPDATE page_versions SET is_published = ? WHERE id = ? AND version = ? AND is_published = ?`
	res, err := r.db.ExecContext(ctx, query, published, pageID, version, !published)
	if err != nil {
		return 0, fmt.Errorf("failed to set published flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// DeletePage removes every version of a page.
func (r *SQLPageRepository) DeletePage(ctx context.Context, pageID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM page_versions WHERE id = ?`, pageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete page: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
