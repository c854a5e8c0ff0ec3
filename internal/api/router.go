package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/timetree"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, receives a recompute.done broadcast after each recompute.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(engine *timetree.Engine, db *index.DB, attrStore timetree.Attributes, authEnabled bool, token string, events Publisher, sseHandler http.Handler) chi.Router {
	h := NewHandler(engine, db, attrStore, events)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree computation.
	r.Post("/recompute", h.Recompute)
	r.Post("/touch/*", h.Touch)

	// Read-only views.
	r.Get("/summary/*", h.Summary)
	r.Get("/descendants/*", h.Descendants)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/graph", h.Graph)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
