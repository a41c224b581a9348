package v1alpha1

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/petrorag/petrorag/internal/batch"
)

// maxUploadMemory bounds how much of the multipart form is held in memory;
// larger parts spill to disk.
const maxUploadMemory = 64 << 20

// parseUploads reads every part of the multipart form into memory. A nil
// return means the response has already been written.
func (h *Handler) parseUploads(w http.ResponseWriter, r *http.Request) []batch.Upload {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.badRequest(w, r, fmt.Sprintf("failed to parse multipart form: %v", err))
		return nil
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		h.badRequest(w, r, "no files provided")
		return nil
	}

	uploads := make([]batch.Upload, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			h.badRequest(w, r, fmt.Sprintf("failed to read file %s: %v", part.Filename, err))
			return nil
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.badRequest(w, r, fmt.Sprintf("failed to read file %s: %v", part.Filename, err))
			return nil
		}
		uploads = append(uploads, batch.Upload{Filename: part.Filename, Data: data})
	}
	return uploads
}

func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	uploads := h.parseUploads(w, r)
	if uploads == nil {
		return
	}

	_, responses, err := h.srv.UploadDocuments(r.Context(), chi.URLParam(r, "category_id"), uploads)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, responses)
}

func (h *Handler) UploadDailyDocuments(w http.ResponseWriter, r *http.Request) {
	uploads := h.parseUploads(w, r)
	if uploads == nil {
		return
	}

	_, responses, err := h.srv.UploadDailyDocuments(r.Context(), chi.URLParam(r, "category_id"), uploads)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, responses)
}

func (h *Handler) CleanupDailyDocuments(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.srv.CleanupDailyDocuments(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, api.DailyCleanupResponse{
		Message:      fmt.Sprintf("Removed %d expired daily documents", deleted),
		DeletedCount: deleted,
	})
}

func (h *Handler) BurnDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "document_id")
	if err := h.srv.BurnDocument(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]string{"message": fmt.Sprintf("Document %s burned successfully", id)})
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.srv.ListDocuments(r.Context(), r.URL.Query().Get("category_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, documents)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	document, err := h.srv.GetDocument(r.Context(), chi.URLParam(r, "document_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, document)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "document_id")
	if err := h.srv.DeleteDocument(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]string{"message": fmt.Sprintf("Document %s deleted", id)})
}

func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	// resolve metadata before writing the body so an unknown id still gets
	// a proper 404
	id := chi.URLParam(r, "document_id")
	document, err := h.srv.GetDocument(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", document.Filename))
	if _, err := h.srv.DownloadDocument(r.Context(), id, w); err != nil {
		// headers are gone; just log the broken transfer
		h.logger.Warnw("document download aborted", "document_id", id, "error", err)
	}
}
