package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/tradedebate/internal/core"
)

// SSE event names.
const (
	eventMessage     = "message"
	eventRunComplete = "run_complete"
	eventError       = "error"
)

// handleRunStream streams run updates using Server-Sent Events.
func (h *Handler) handleRunStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slog.Debug("New run stream connection", "id", id, "remote_addr", r.RemoteAddr)

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Streaming unsupported: ResponseWriter does not implement http.Flusher")
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	run, messages, err := h.engine.GetRunWithMessages(id)
	if err != nil {
		slog.Error("Failed to get run for stream", "id", id, "error", err)
		h.sendSSEError(w, flusher, "Failed to get run")
		return
	}
	if run == nil {
		slog.Warn("Run not found for stream", "id", id)
		h.sendSSEError(w, flusher, "Run not found")
		return
	}

	// Send existing messages immediately
	for _, msg := range messages {
		h.sendSSEEvent(w, flusher, eventMessage, msg)
	}

	if finished(run) {
		h.sendFinal(w, flusher, run)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.runTimeout)
	defer cancel()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	sent := len(messages)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stream context done", "id", id)
			return
		case <-ticker.C:
			updated, updatedMessages, err := h.engine.GetRunWithMessages(id)
			if err != nil {
				slog.Error("Stream error updating run", "id", id, "error", err)
				continue
			}
			if updated == nil {
				h.sendSSEError(w, flusher, "Run was deleted")
				return
			}

			if len(updatedMessages) > sent {
				slog.Debug("New messages detected", "id", id, "count", len(updatedMessages)-sent)
				for _, msg := range updatedMessages[sent:] {
					h.sendSSEEvent(w, flusher, eventMessage, msg)
				}
				sent = len(updatedMessages)
			}

			if finished(updated) {
				slog.Debug("Run finished during stream", "id", id, "status", updated.Status)
				h.sendFinal(w, flusher, updated)
				return
			}
		}
	}
}

func finished(run *core.Run) bool {
	return run.Status == core.StatusCompleted || run.Status == core.StatusFailed
}

// sendFinal closes a stream with run_complete, or error for a failed run.
func (h *Handler) sendFinal(w http.ResponseWriter, flusher http.Flusher, run *core.Run) {
	if run.Status == core.StatusFailed {
		h.sendSSEError(w, flusher, run.Error)
		return
	}
	h.sendSSEEvent(w, flusher, eventRunComplete, run)
}

// sendSSEEvent sends a server-sent event.
func (h *Handler) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		slog.Error("Failed to write SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		slog.Error("Failed to write SSE data", "error", err)
		return
	}
	flusher.Flush()
}

// sendSSEError sends an error event.
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, message string) {
	h.sendSSEEvent(w, flusher, eventError, map[string]string{"message": message})
}
