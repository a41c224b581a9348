package v1alpha1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jitterbug "github.com/lthibault/jitterbug/v2"
	api "github.com/petrorag/petrorag/api/v1alpha1"
)

const heartbeatInterval = 15 * time.Second

func (h *Handler) GetBatchStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.srv.GetBatchStatus(chi.URLParam(r, "batch_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, status)
}

func (h *Handler) TerminateBatch(w http.ResponseWriter, r *http.Request) {
	resp, err := h.srv.TerminateBatch(r.Context(), chi.URLParam(r, "batch_id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, resp)
}

// StreamBatchProgress serves the live progress feed over SSE. The stream
// opens with an initial_state event carrying a full snapshot, then relays
// every file update in publish order. Heartbeats keep idle connections
// alive; the stream closes once every file of the batch is terminal.
func (h *Handler) StreamBatchProgress(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	sub, record, err := h.srv.SubscribeBatch(batchID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	defer h.srv.UnsubscribeBatch(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// terminal statuses observed so far; seeded from the snapshot so a
	// late subscriber on a finished batch closes right after initial_state
	statuses := make(map[string]api.FileStatus, len(record.Files))
	initial := api.InitialStateEvent{
		Type:    api.EventTypeInitialState,
		BatchId: batchID,
		Files:   make(map[string]api.FileProgress, len(record.Files)),
	}
	for _, f := range record.Files {
		statuses[f.Filename] = f.Status
		initial.Files[f.Filename] = api.FileProgress{Status: f.Status, Detail: f.Detail, Timestamp: f.Timestamp}
	}
	if err := writeSSE(w, initial); err != nil {
		return
	}
	flusher.Flush()

	if allTerminal(statuses) {
		return
	}

	heartbeat := jitterbug.New(heartbeatInterval, &jitterbug.Norm{Stdev: 100 * time.Millisecond})
	defer heartbeat.Stop()

	lastWrite := time.Now()
	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if !heartbeatDue(lastWrite, time.Now()) {
				continue
			}
			event := api.HeartbeatEvent{
				Type:      api.EventTypeHeartbeat,
				BatchId:   batchID,
				Timestamp: time.Now().UTC(),
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
			lastWrite = time.Now()

		case <-sub.Notify():
			wrote := false
			for {
				event, ok := sub.Pop()
				if !ok {
					break
				}
				if err := writeSSE(w, event); err != nil {
					return
				}
				statuses[event.Filename] = event.Status
				wrote = true
			}
			if wrote {
				flusher.Flush()
				lastWrite = time.Now()
			}
			if allTerminal(statuses) {
				return
			}
			// A wake without events means the batch shrank under us
			// (termination cleanup); the local map may still hold
			// deleted files, so re-check against the store.
			finished, err := h.batchFinished(batchID)
			if err != nil || finished {
				return
			}
		}
	}
}

// batchFinished reports whether every file still tracked for the batch is
// terminal. A missing batch counts as an error; the caller closes the stream
// either way.
func (h *Handler) batchFinished(batchID string) (bool, error) {
	status, err := h.srv.GetBatchStatus(batchID)
	if err != nil {
		return false, err
	}
	for _, f := range status.Files {
		if !f.Status.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

func writeSSE(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// heartbeatDue reports whether enough silence has passed since the last
// write; heartbeats only fill gaps, they never interleave with live updates.
func heartbeatDue(lastWrite, now time.Time) bool {
	return now.Sub(lastWrite) >= heartbeatInterval
}

func allTerminal(statuses map[string]api.FileStatus) bool {
	for _, s := range statuses {
		if !s.Terminal() {
			return false
		}
	}
	return true
}
