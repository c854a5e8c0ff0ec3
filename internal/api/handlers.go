package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lucasmnt/timetree/internal/apperr"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/models"
	"github.com/lucasmnt/timetree/internal/sse"
	"github.com/lucasmnt/timetree/internal/timetree"
)

// Publisher broadcasts events to connected SSE clients.
type Publisher interface {
	Publish(event sse.Event)
}

// Handler holds API route handlers.
type Handler struct {
	engine *timetree.Engine
	db     *index.DB
	attrs  timetree.Attributes
	events Publisher
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(engine *timetree.Engine, db *index.DB, attrStore timetree.Attributes, events Publisher) *Handler {
	return &Handler{engine: engine, db: db, attrs: attrStore, events: events}
}

// notePath extracts the note path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. tree%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Recompute handles POST /api/recompute.
//
//	@Summary		Recompute the whole time tree from the configured root
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	RecomputeResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/recompute [post]
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.engine.Recompute(r.Context()); err != nil {
		switch {
		case errors.Is(err, apperr.ErrNoRoot):
			writeJSON(w, http.StatusConflict, errorBody("no root note configured"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusConflict, errorBody("root note not indexed"))
		default:
			slog.Error("recompute failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	duration := time.Since(start).Round(time.Millisecond).String()
	if h.events != nil {
		h.events.Publish(sse.Event{Type: "recompute.done", Data: map[string]string{"duration": duration}})
	}
	writeJSON(w, http.StatusOK, RecomputeResponse{
		Status:   "ok",
		Duration: duration,
	})
}

// Touch handles POST /api/touch/*.
//
//	@Summary		Refresh one note's elapsed time and propagate to its ancestors
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NodeSummary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/touch/{path} [post]
func (h *Handler) Touch(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.engine.Touch(r.Context(), path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("touch failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	summary, err := h.engine.Summarize(r.Context(), path)
	if err != nil {
		slog.Error("summarize after touch failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Summary handles GET /api/summary/*.
//
//	@Summary		Read a note's stored time attributes
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NodeSummary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summary/{path} [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	summary, err := h.engine.Summarize(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("summary failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Descendants handles GET /api/descendants/*.
//
//	@Summary		List a note's subtree in traversal order
//	@Tags			tree
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	DescendantsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/descendants/{path} [get]
func (h *Handler) Descendants(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ok, err := h.db.Exists(path)
	if err != nil {
		slog.Error("descendants failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	descendants := h.engine.CollectDescendants(path)
	if descendants == nil {
		descendants = []string{}
	}
	writeJSON(w, http.StatusOK, DescendantsResponse{
		Path:        path,
		Descendants: descendants,
		Count:       len(descendants),
	})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List the notes linking to a target
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ok, err := h.db.Exists(path)
	if err != nil {
		slog.Error("backlinks failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	links, err := h.db.Backlinks(path)
	if err != nil {
		slog.Error("backlinks failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]BacklinkItem, 0, len(links))
	for _, l := range links {
		items = append(items, BacklinkItem{Path: l.Path, CreatedAt: l.CreatedAt})
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: items})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph with node sizes
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.db.Graph()
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	outNodes := make([]GraphNode, 0, len(nodes))
	for _, n := range nodes {
		elapsed, _ := h.attrs.Number(n.Path, models.AttrElapsed)
		childSum, _ := h.attrs.Number(n.Path, h.engine.ChildKey())
		size, _ := h.attrs.Number(n.Path, models.AttrNodeSize)
		outNodes = append(outNodes, GraphNode{
			ID:       n.Path,
			Title:    n.Title,
			Elapsed:  elapsed,
			ChildSum: childSum,
			NodeSize: size,
		})
	}
	outLinks := make([]GraphLink, 0, len(edges))
	for _, e := range edges {
		outLinks = append(outLinks, GraphLink{Source: e.Source, Target: e.Target})
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: outNodes, Links: outLinks})
}
