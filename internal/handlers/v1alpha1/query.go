package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net/http"

	api "github.com/petrorag/petrorag/api/v1alpha1"
)

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var request api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	response, err := h.srv.Query(r.Context(), request)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, response)
}

func (h *Handler) ImageSearch(w http.ResponseWriter, r *http.Request) {
	var request api.ImageSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	response, err := h.srv.SearchImages(r.Context(), request)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, response)
}
