package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go-directory-wiki/internal/data"
	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/media"

	"github.com/google/uuid"
)

// ContactRepository stores directory contacts.
type ContactRepository interface {
	List(ctx context.Context) ([]*data.Contact, error)
	Get(ctx context.Context, id string) (*data.Contact, error)
	Create(ctx context.Context, contact *data.Contact) error
	Update(ctx context.Context, contact *data.Contact) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore keeps uploaded files and resolves their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// ContactInput is the editable part of a contact.
type ContactInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"max=100"`
	Phone       string `json:"phone" validate:"max=50"`
	Email       string `json:"email" validate:"omitempty,email"`
	Website     string `json:"website" validate:"omitempty,url"`
	Address     string `json:"address" validate:"max=300"`
}

// DirectoryServicer is the directory API used by the HTTP layer.
type DirectoryServicer interface {
	SearchContacts(ctx context.Context, query, category string) []*data.Contact
	GetContact(ctx context.Context, id string) (*data.Contact, error)
	CreateContact(ctx context.Context, in ContactInput) (*data.Contact, error)
	UpdateContact(ctx context.Context, id string, in ContactInput) (*data.Contact, error)
	DeleteContact(ctx context.Context, id string) error
	ListContactCategories(ctx context.Context) []string
	UploadImage(ctx context.Context, id string, r io.Reader) (*data.Contact, error)
}

var _ DirectoryServicer = (*DirectoryService)(nil)

// DirectoryService manages the business directory.
type DirectoryService struct {
	repo     ContactRepository
	objects  ObjectStore
	images   *media.Processor
	notifier *Notifier
	log      logger.Logger
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
}

// NewDirectoryService creates a DirectoryService. notifier may be nil.
func NewDirectoryService(repo ContactRepository, objects ObjectStore, images *media.Processor, notifier *Notifier, log logger.Logger, timeout time.Duration) *DirectoryService {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &DirectoryService{
		repo:     repo,
		objects:  objects,
		images:   images,
		notifier: notifier,
		log:      log,
		timeout:  timeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *DirectoryService) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
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

// ListContacts returns every contact.
func (s *DirectoryService) ListContacts(ctx context.Context) ([]*data.Contact, error) {
	var contacts []*data.Contact
	err := s.call(ctx, "list contacts", func(ctx context.Context) error {
		var err error
		contacts, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, readErr("list contacts", "contacts", "", err)
	}
	return contacts, nil
}

// SearchContacts returns the contacts matching query and category. An empty
// category matches everything. A store failure yields an empty list.
func (s *DirectoryService) SearchContacts(ctx context.Context, query, category string) []*data.Contact {
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		s.log.Error(err, "Failed to load contacts, returning empty result")
		return []*data.Contact{}
	}
	if category == "" {
		category = AllCategories
	}
	return FilterContacts(contacts, query, category)
}

// GetContact returns the contact with id.
func (s *DirectoryService) GetContact(ctx context.Context, id string) (*data.Contact, error) {
	var contact *data.Contact
	err := s.call(ctx, "get contact", func(ctx context.Context) error {
		var err error
		contact, err = s.repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, readErr("get contact", "contact", id, err)
	}
	return contact, nil
}

func (in ContactInput) apply(c *data.Contact) error {
	c.Name = cleanText(in.Name)
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	c.Description = cleanText(in.Description)
	c.Category = categoryOrDefault(in.Category)
	c.Phone = cleanText(in.Phone)
	c.Email = cleanText(in.Email)
	c.Website = cleanText(in.Website)
	c.Address = cleanText(in.Address)
	return nil
}

// CreateContact adds a contact to the directory.
func (s *DirectoryService) CreateContact(ctx context.Context, in ContactInput) (*data.Contact, error) {
	now := s.now().UTC()
	contact := &data.Contact{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	if err := in.apply(contact); err != nil {
		return nil, err
	}

	err := s.call(ctx, "create contact", func(ctx context.Context) error {
		return s.repo.Create(ctx, contact)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	s.log.With(map[string]interface{}{"contact_id": contact.ID}).Info("Contact created")
	s.publish(ContactCreated, contact.ID)
	return contact, nil
}

// UpdateContact replaces the editable fields of a contact.
func (s *DirectoryService) UpdateContact(ctx context.Context, id string, in ContactInput) (*data.Contact, error) {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(contact); err != nil {
		return nil, err
	}
	contact.UpdatedAt = s.now().UTC()

	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}
	s.publish(ContactUpdated, contact.ID)
	return contact, nil
}

func (s *DirectoryService) save(ctx context.Context, contact *data.Contact) error {
	err := s.call(ctx, "update contact", func(ctx context.Context) error {
		return s.repo.Update(ctx, contact)
	})
	if errors.Is(err, data.ErrNotFound) {
		return &NotFoundError{Resource: "contact", Key: contact.ID}
	}
	if err != nil {
		return fmt.Errorf("failed to update contact %s: %w", contact.ID, err)
	}
	return nil
}

// DeleteContact removes a contact.
func (s *DirectoryService) DeleteContact(ctx context.Context, id string) error {
	err := s.call(ctx, "delete contact", func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if errors.Is(err, data.ErrNotFound) {
		return &NotFoundError{Resource: "contact", Key: id}
	}
	if err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}

	s.log.With(map[string]interface{}{"contact_id": id}).Info("Contact deleted")
	s.publish(ContactDeleted, id)
	return nil
}

// ListContactCategories returns AllCategories followed by the distinct
// contact categories in first-seen order.
func (s *DirectoryService) ListContactCategories(ctx context.Context) []string {
	out := []string{AllCategories}
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		s.log.Error(err, "Failed to load contact categories")
		return out
	}
	seen := map[string]bool{AllCategories: true}
	for _, c := range contacts {
		if c.Category == "" || seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		out = append(out, c.Category)
	}
	return out
}

// UploadImage compresses the image read from r, stores it as
// contacts/<id><ext> and points the contact at it.
func (s *DirectoryService) UploadImage(ctx context.Context, id string, r io.Reader) (*data.Contact, error) {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}

	img, err := s.images.Process(r)
	if errors.Is(err, media.ErrUnsupportedFormat) {
		return nil, &ValidationError{Field: "image", Message: err.Error()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to process image for contact %s: %w", id, err)
	}

	key := "contacts/" + contact.ID + img.Ext
	err = s.call(ctx, "upload image", func(ctx context.Context) error {
		return s.objects.Upload(ctx, key, img.Data, img.ContentType)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image for contact %s: %w", id, err)
	}

	contact.ImageURL = s.objects.PublicURL(key)
	contact.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, contact); err != nil {
		return nil, err
	}

	s.log.With(map[string]interface{}{
		"contact_id": id,
		"key":        key,
		"bytes":      len(img.Data),
	}).Info("Contact image stored")
	s.publish(ContactUpdated, contact.ID)
	return contact, nil
}

func (s *DirectoryService) publish(kind ChangeKind, id string) {
	s.notifier.Publish(ChangeEvent{Kind: kind, ID: id, At: s.now().UTC()})
}
