// Package server exposes the curation system over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/bootstrap"
	"github.com/shelfwise/shelfwise/internal/model"
	"github.com/shelfwise/shelfwise/internal/process"
	"github.com/shelfwise/shelfwise/internal/store"
	"github.com/shelfwise/shelfwise/internal/suppress"
)

type api struct {
	manager   *bootstrap.Manager
	processor *process.Processor
	registry  *suppress.Registry
	store     store.Store
}

// NewRouter builds the HTTP API router.
func NewRouter(manager *bootstrap.Manager, processor *process.Processor, registry *suppress.Registry, st store.Store) http.Handler {
	a := &api{manager: manager, processor: processor, registry: registry, store: st}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/health", a.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", a.startScan)
		r.Post("/scan/cancel", a.cancelScan)
		r.Post("/scan/skip", a.skipScan)
		r.Get("/scan/progress", a.scanProgress)
		r.Post("/scan/{kind}", a.startScan)

		r.Get("/reviews", a.listReviews)
		r.Delete("/reviews/{id}", a.deleteReview)

		r.Get("/blocklist", a.listBlocked)
		r.Post("/blocklist", a.addBlocked)
		r.Delete("/blocklist/{id}", a.removeBlocked)

		r.Post("/documents/{id}/process", a.processDocument)
	})

	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) startScan(w http.ResponseWriter, r *http.Request) {
	kind := model.SuggestionKind(chi.URLParam(r, "kind"))

	err := a.manager.Start(r.Context(), kind)
	switch {
	case errors.Is(err, model.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case model.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func (a *api) cancelScan(w http.ResponseWriter, r *http.Request) {
	if !a.manager.Cancel() {
		writeError(w, http.StatusConflict, "no scan running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (a *api) skipScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		N int `json:"n"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.N < 1 {
		writeError(w, http.StatusBadRequest, "body must be {\"n\": <positive int>}")
		return
	}
	a.manager.Skip(req.N)
	writeJSON(w, http.StatusOK, map[string]int{"skipping": req.N})
}

func (a *api) scanProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.Progress())
}

func (a *api) listReviews(w http.ResponseWriter, r *http.Request) {
	kind := model.SuggestionKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown kind")
		return
	}

	items, err := a.store.ListPendingReviews(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": items})
}

func (a *api) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeletePendingReview(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listBlocked(w http.ResponseWriter, r *http.Request) {
	entries, err := a.store.ListAllBlocked(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked": entries})
}

func (a *api) addBlocked(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name"`
		Scope          string `json:"scope"`
		Reason         string `json:"reason"`
		SourceDocument string `json:"source_document"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scope := model.Scope(req.Scope)
	if scope != model.ScopeGlobal && !model.SuggestionKind(scope).Valid() {
		writeError(w, http.StatusBadRequest, "unknown scope")
		return
	}

	entry, err := a.registry.Add(r.Context(), req.Name, scope, req.Reason, req.SourceDocument)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *api) removeBlocked(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
