package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	api "github.com/petrorag/petrorag/api/v1alpha1"
)

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var request api.CategoryCreate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	category, err := h.srv.CreateCategory(r.Context(), request)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, category)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.srv.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, categories)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.srv.GetCategory(r.Context(), chi.URLParam(r, "category_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, category)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "category_id")
	if err := h.srv.DeleteCategory(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]string{"message": fmt.Sprintf("Category %s deleted", id)})
}
