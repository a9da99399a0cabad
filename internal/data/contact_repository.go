package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const contactColumns = `id, name, description, category, phone, email, website, address, image_url, created_at, updated_at`

// SQLContactRepository handles database operations for directory contacts.
type SQLContactRepository struct {
	db *sqlx.DB
}

// NewSQLContactRepository creates a new SQLContactRepository.
func NewSQLContactRepository(db *sqlx.DB) *SQLContactRepository {
	return &SQLContactRepository{db: db}
}

// List returns all contacts ordered by name.
func (r *SQLContactRepository) List(ctx context.Context) ([]*Contact, error) {
	var contacts []*Contact
	if err := r.db.SelectContext(ctx, &contacts, `SELECT `+contactColumns+` FROM contacts ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Get finds a contact by ID.
func (r *SQLContactRepository) Get(ctx context.Context, id string) (*Contact, error) {
	var contact Contact
	if err := r.db.GetContext(ctx, &contact, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

// Create inserts a new contact.
func (r *SQLContactRepository) Create(ctx context.Context, contact *Contact) error {
	query := `INSERT INTO contacts (` + contactColumns + `)
		VALUES (:id, :name, :description, :category, :phone, :email, :website, :address, :image_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, contact); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("contact %s: %w", contact.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// Update overwrites an existing contact.
func (r *SQLContactRepository) Update(ctx context.Context, contact *Contact) error {
	query := `UPDATE contacts SET name = :name, description = :description, category = :category, phone = :phone,
		email = :email, website = :website, address = :address, image_url = :image_url, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, contact)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a contact by ID.
func (r *SQLContactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
