package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go-directory-wiki/internal/logger"
	"go-directory-wiki/internal/middleware"
	"go-directory-wiki/internal/response"
	"go-directory-wiki/internal/service"
	"go-directory-wiki/internal/view"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// PageHandler serves the wiki API and rendered wiki pages.
type PageHandler struct {
	pageService service.PageServicer
	view        *view.View
	validate    *validator.Validate
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, v *view.View, log logger.Logger) *PageHandler {
	return &PageHandler{
		pageService: ps,
		view:        v,
		validate:    validator.New(),
		log:         log,
	}
}

type createPageRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content"`
	Excerpt  string `json:"excerpt" validate:"max=500"`
	Category string `json:"category" validate:"max=100"`
}

type updatePageRequest struct {
	CurrentVersion *int    `json:"current_version" validate:"required,min=0"`
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Content        *string `json:"content"`
	Excerpt        *string `json:"excerpt" validate:"omitempty,max=500"`
	Category       *string `json:"category" validate:"omitempty,max=100"`
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, validate *validator.Validate, dst interface{}) *middleware.AppError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}
	if err := validate.Struct(dst); err != nil {
		return middleware.BadRequest(err)
	}
	return nil
}

// listHandler returns published pages filtered by ?q= and ?category=.
func (h *PageHandler) listHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	pages := h.pageService.ListPages(r.Context(), service.PageFilter{
		Query:    r.URL.Query().Get("q"),
		Category: r.URL.Query().Get("category"),
	})
	response.Success(w, pages)
	return nil
}

func (h *PageHandler) createHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req createPageRequest
	if appErr := decode(r, h.validate, &req); appErr != nil {
		return appErr
	}
	page, err := h.pageService.CreatePage(r.Context(), req.Title, req.Content, req.Excerpt, req.Category)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Created(w, page)
	return nil
}

func (h *PageHandler) getHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	page, err := h.pageService.GetPage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, page)
	return nil
}

// updateHandler saves a new version. The client sends the version it edited
// so a concurrent edit is reported as a conflict.
func (h *PageHandler) updateHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	var req updatePageRequest
	if appErr := decode(r, h.validate, &req); appErr != nil {
		return appErr
	}
	page, err := h.pageService.GetPage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return middleware.FromError(err)
	}
	updated, err := h.pageService.UpdateVersion(r.Context(), page.ID, *req.CurrentVersion, service.PageFields{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  req.Excerpt,
		Category: req.Category,
	})
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, updated)
	return nil
}

func (h *PageHandler) deleteHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	page, err := h.pageService.GetPage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return middleware.FromError(err)
	}
	if err := h.pageService.DeletePage(r.Context(), page.ID); err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, nil)
	return nil
}

func (h *PageHandler) versionsHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	page, err := h.pageService.GetPage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return middleware.FromError(err)
	}
	versions, err := h.pageService.ListVersions(r.Context(), page.ID)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, versions)
	return nil
}

func (h *PageHandler) restoreHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 0 {
		return middleware.BadRequest(fmt.Errorf("invalid version %q", chi.URLParam(r, "version")))
	}
	page, err := h.pageService.RestoreVersion(r.Context(), "", chi.URLParam(r, "slug"), version)
	if err != nil {
		return middleware.FromError(err)
	}
	response.Success(w, page)
	return nil
}

func (h *PageHandler) categoriesHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	response.Success(w, h.pageService.ListCategories(r.Context()))
	return nil
}

// viewHandler renders the published version of a page as HTML.
func (h *PageHandler) viewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	page, body, err := h.pageService.RenderPage(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		return middleware.FromError(err)
	}

	data := map[string]interface{}{
		"Page":     page,
		"Body":     body,
		"UserInfo": middleware.GetUserInfo(r.Context()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.view.Render(w, "page.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page", Code: http.StatusInternalServerError}
	}
	return nil
}
