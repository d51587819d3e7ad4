package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/model"
)

// processDocument runs the confirmation loop for one document and streams
// its lifecycle events as server-sent events. The stream always ends with
// exactly one terminal event.
func (a *api) processDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	kind := model.SuggestionKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = model.KindTitle
	}
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := a.processor.Stream(r.Context(), docID, kind)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			zap.L().Warn("server: marshal event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	}
}
