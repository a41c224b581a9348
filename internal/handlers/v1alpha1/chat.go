package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	api "github.com/petrorag/petrorag/api/v1alpha1"
)

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var request api.ChatCreate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	chat, err := h.srv.CreateChat(r.Context(), request)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, chat)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.srv.ListChats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, chats)
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := h.srv.GetChat(r.Context(), chi.URLParam(r, "chat_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, chat)
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "chat_id")
	if err := h.srv.DeleteChat(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]string{"message": fmt.Sprintf("Chat %s deleted", id)})
}

func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var request api.ChatMessageCreate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	response, err := h.srv.SendChatMessage(r.Context(), chi.URLParam(r, "chat_id"), request)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, response)
}

// StreamChatMessage answers like SendChatMessage but delivers the answer over
// SSE as it is generated: one event per token, then a final done event with
// the full answer and its sources.
func (h *Handler) StreamChatMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")

	var request api.ChatMessageCreate
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validator.Struct(request); err != nil {
		h.badRequest(w, r, fmt.Sprintf("validation failed: %v", err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	// resolve the chat before committing to the event stream so an unknown
	// id still gets a proper 404
	if _, err := h.srv.GetChat(r.Context(), chatID); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	response, err := h.srv.SendChatMessageStream(r.Context(), chatID, request, func(token string) {
		if err := writeSSE(w, api.ChatStreamToken{Token: token}); err != nil {
			return
		}
		flusher.Flush()
	})
	if err != nil {
		// headers are gone; surface the failure in-stream
		_ = writeSSE(w, map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}

	done := api.ChatStreamDone{
		Done:    true,
		ChatId:  chatID,
		Answer:  response.Answer,
		Sources: response.Sources,
	}
	if err := writeSSE(w, done); err != nil {
		return
	}
	flusher.Flush()
}
