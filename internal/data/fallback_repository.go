package data

import (
	"context"
	"errors"

	"go-directory-wiki/internal/logger"
)

type contactStore interface {
	List(ctx context.Context) ([]*Contact, error)
	Get(ctx context.Context, id string) (*Contact, error)
	Create(ctx context.Context, contact *Contact) error
	Update(ctx context.Context, contact *Contact) error
	Delete(ctx context.Context, id string) error
}

// FallbackContactRepository reads from the primary store and, when that
// read fails, from the legacy API. Writes only ever go to the primary.
type FallbackContactRepository struct {
	primary contactStore
	legacy  contactStore
	log     logger.Logger
}

// NewFallbackContactRepository composes a primary store with a read fallback.
func NewFallbackContactRepository(primary, legacy contactStore, log logger.Logger) *FallbackContactRepository {
	return &FallbackContactRepository{primary: primary, legacy: legacy, log: log}
}

func (r *FallbackContactRepository) List(ctx context.Context) ([]*Contact, error) {
	contacts, err := r.primary.List(ctx)
	if err == nil {
		return contacts, nil
	}
	r.log.Error(err, "Primary contact store unavailable, reading legacy directory")
	contacts, legacyErr := r.legacy.List(ctx)
	if legacyErr != nil {
		return nil, errors.Join(err, legacyErr)
	}
	return contacts, nil
}

func (r *FallbackContactRepository) Get(ctx context.Context, id string) (*Contact, error) {
	contact, err := r.primary.Get(ctx, id)
	if err == nil || errors.Is(err, ErrNotFound) {
		return contact, err
	}
	r.log.Error(err, "Primary contact store unavailable, reading legacy directory")
	contact, legacyErr := r.legacy.Get(ctx, id)
	if legacyErr != nil {
		return nil, errors.Join(err, legacyErr)
	}
	return contact, nil
}

func (r *FallbackContactRepository) Create(ctx context.Context, contact *Contact) error {
	return r.primary.Create(ctx, contact)
}

func (r *FallbackContactRepository) Update(ctx context.Context, contact *Contact) error {
	return r.primary.Update(ctx, contact)
}

func (r *FallbackContactRepository) Delete(ctx context.Context, id string) error {
	return r.primary.Delete(ctx, id)
}
