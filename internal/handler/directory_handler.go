package handler

import (
	"errors"
	"net/http"

	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/media"
	"go-directory-wiki/internal/middleware"
	"go-directory-wiki/internal/response"
	"go-directory-wiki/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// DirectoryHandler serves the contact directory API.
type DirectoryHandler struct {
	directory service.DirectoryServicer
	validate  *validator.Validate
	log       logger.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(ds service.DirectoryServicer, log logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: ds, validate: validator.New(), log: log}
}

func (h *DirectoryHandler) listHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	contacts := h.directory.SearchContacts(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("category"))
	response.Success(w, contacts)
	return nil
}

func (h *DirectoryHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req service.ContactInput
	if appErr := decode(r, h.validate, &req); appErr != nil {
		return appErr
	}
	contact, err := h.directory.CreateContact(r.Context(), req)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Created(w, contact)
	return nil
}

func (h *DirectoryHandler) getHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	contact, err := h.directory.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, contact)
	return nil
}

func (h *DirectoryHandler) updateHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req service.ContactInput
	if appErr := decode(r, h.validate, &req); appErr != nil {
		return appErr
	}
	contact, err := h.directory.UpdateContact(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, contact)
	return nil
}

func (h *DirectoryHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if err := h.directory.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, nil)
	return nil
}

// imageHandler accepts a multipart upload in the "image" field.
func (h *DirectoryHandler) imageHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		return middleware.BadRequest(errors.New("invalid or oversized multipart upload"))
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return middleware.BadRequest(errors.New(`missing "image" file field`))
	}
	defer file.Close()

	contact, err := h.directory.UploadImage(r.Context(), chi.URLParam(r, "id"), file)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, contact)
	return nil
}

func (h *DirectoryHandler) categoriesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	response.Success(w, h.directory.ListContactCategories(r.Context()))
	return nil
}
