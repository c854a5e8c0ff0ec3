package api

import (
	"time"

	"github.com/lucasmnt/timetree/internal/timetree"
)

// NodeSummary is the per-note summary response (aliased from the domain layer).
type NodeSummary = timetree.Summary

// RecomputeResponse reports the outcome of a full tree recompute.
type RecomputeResponse struct {
	Status   string `json:"status" example:"ok" validate:"required"`
	Duration string `json:"duration" example:"152ms" validate:"required"`
}

// DescendantsResponse lists a note's subtree in traversal order.
type DescendantsResponse struct {
	Path        string   `json:"path" example:"tree/projects.md" validate:"required"`
	Descendants []string `json:"descendants" validate:"required"`
	Count       int      `json:"count" example:"4" validate:"required"`
}

// BacklinkItem is one linking note with its creation timestamp.
type BacklinkItem struct {
	Path      string    `json:"path" example:"tree/root.md" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// BacklinksResponse lists the notes linking to a target.
type BacklinksResponse struct {
	Path      string         `json:"path" validate:"required"`
	Backlinks []BacklinkItem `json:"backlinks" validate:"required"`
}

// GraphNode is a node in the tree graph, carrying the derived time
// attributes visualization clients render.
type GraphNode struct {
	ID       string  `json:"id" example:"tree/projects.md" validate:"required"`
	Title    string  `json:"title,omitempty" example:"Projects"`
	Elapsed  float64 `json:"elapsed,omitempty" example:"3600"`
	ChildSum float64 `json:"elapsed_child,omitempty" example:"7200"`
	NodeSize float64 `json:"node_size,omitempty" example:"42.5"`
}

// GraphLink is an edge in the tree graph.
type GraphLink struct {
	Source string `json:"source" example:"tree/root.md" validate:"required"`
	Target string `json:"target" example:"tree/projects.md" validate:"required"`
}

// GraphResponse wraps the tree graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}
