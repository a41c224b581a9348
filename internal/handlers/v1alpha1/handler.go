// Package v1alpha1 exposes the service operations over HTTP. Handlers stay
// thin: decode, validate, call the service, map typed errors to status codes.
package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/handlers/validator"
	"github.com/petrorag/petrorag/internal/service"
	"github.com/petrorag/petrorag/pkg/requestid"
	"go.uber.org/zap"
)

type Handler struct {
	srv       *service.ServiceHandler
	validator *validator.Validator
	logger    *zap.SugaredLogger
}

func NewHandler(srv *service.ServiceHandler) *Handler {
	v := validator.NewValidator()
	v.Register(validator.NewCategoryValidationRules()...)
	return &Handler{
		srv:       srv,
		validator: v,
		logger:    zap.S().Named("handlers"),
	}
}

// RegisterRoutes mounts every API operation under the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/upload/{category_id}", h.UploadDocuments)
		r.Post("/upload/daily/{category_id}", h.UploadDailyDocuments)
		r.Delete("/cleanup/daily", h.CleanupDailyDocuments)
		r.Get("/", h.ListDocuments)
		r.Get("/{document_id}", h.GetDocument)
		r.Delete("/{document_id}", h.DeleteDocument)
		r.Delete("/{document_id}/burn", h.BurnDocument)
		r.Get("/{document_id}/download", h.DownloadDocument)
	})
	r.Route("/batches", func(r chi.Router) {
		r.Get("/{batch_id}", h.GetBatchStatus)
		r.Get("/{batch_id}/progress", h.StreamBatchProgress)
		r.Post("/{batch_id}/terminate", h.TerminateBatch)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
		r.Get("/", h.ListCategories)
		r.Get("/{category_id}", h.GetCategory)
		r.Delete("/{category_id}", h.DeleteCategory)
	})
	r.Route("/chats", func(r chi.Router) {
		r.Post("/", h.CreateChat)
		r.Get("/", h.ListChats)
		r.Get("/{chat_id}", h.GetChat)
		r.Delete("/{chat_id}", h.DeleteChat)
		r.Post("/{chat_id}/messages", h.SendChatMessage)
		r.Post("/{chat_id}/messages/stream", h.StreamChatMessage)
	})
	r.Post("/query", h.Query)
	r.Post("/query/image-search", h.ImageSearch)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

// respondError maps typed service errors onto HTTP status codes.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var notFound *service.ErrResourceNotFound
	var invalid *service.ErrInvalidRequest
	var duplicate *service.ErrDuplicateResource
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		status = http.StatusBadRequest
	case errors.As(err, &duplicate):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Errorw("request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, api.Error{
		Message:   err.Error(),
		RequestId: requestid.FromContextPtr(r.Context()),
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, api.Error{
		Message:   message,
		RequestId: requestid.FromContextPtr(r.Context()),
	})
}
