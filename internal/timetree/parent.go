package timetree

import (
	"log/slog"
	"strings"

	"github.com/lucasmnt/timetree/internal/models"
)

// ResolveParent picks the canonical parent of a note: among backlink sources
// inside the configured folder scope, the one with the earliest creation
// time wins. Ties on creation time resolve to the lexicographically smallest
// path, so the result is deterministic for a fixed graph snapshot. The
// relation is derived per call, never stored.
func (e *Engine) ResolveParent(path string) (string, bool) {
	backlinks, err := e.graph.Backlinks(path)
	if err != nil {
		e.logger.Warn("tree: backlinks failed", slog.String("path", path), slog.String("error", err.Error()))
		return "", false
	}

	var best *models.Backlink
	for i := range backlinks {
		bl := &backlinks[i]
		if !e.inScope(bl.Path) {
			continue
		}
		if best == nil {
			best = bl
			continue
		}
		switch {
		case bl.CreatedAt.Before(best.CreatedAt):
			best = bl
		case bl.CreatedAt.Equal(best.CreatedAt) && bl.Path < best.Path:
			best = bl
		}
	}
	if best == nil {
		return "", false
	}
	return best.Path, true
}

// inScope applies the root-folder filter: with subdirectories considered a
// note anywhere under the folder qualifies, otherwise only direct children.
// An empty folder scope admits everything.
func (e *Engine) inScope(path string) bool {
	folder := strings.TrimSuffix(e.cfg.RootFolder, "/")
	if folder == "" {
		return true
	}
	if !strings.HasPrefix(path, folder+"/") {
		return false
	}
	if e.cfg.ConsiderSubdirs {
		return true
	}
	return !strings.Contains(path[len(folder)+1:], "/")
}
