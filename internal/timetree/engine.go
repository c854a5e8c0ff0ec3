// Package timetree implements the derived time-attribute tree: subtree
// aggregation of tracked durations, upward propagation after local edits,
// canonical-parent resolution, and display-size normalization. All derived
// values live in note frontmatter; the engine owns no state of its own.
package timetree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lucasmnt/timetree/internal/apperr"
	"github.com/lucasmnt/timetree/internal/attrs"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/models"
)

// Attributes is the frontmatter read/write surface the engine depends on.
type Attributes interface {
	Update(path string, transform attrs.Transform) error
	Number(path, key string) (float64, error)
	Bool(path, key string) (bool, error)
}

// Durations supplies raw tracked time per note.
type Durations interface {
	SessionsFor(path string) ([]models.TrackerSession, error)
	Total(sessions []models.TrackerSession, onlyFirst bool) (float64, bool)
}

// Config holds the engine's behavioural knobs. ChildKey names the
// descendant-aggregate attribute; an empty value falls back to the default.
type Config struct {
	RootNote         string
	RootFolder       string
	ConsiderSubdirs  bool
	OnlyFirstTracker bool
	ChildKey         string
}

// Engine computes and maintains the derived attributes. Runs are serialized
// behind a single mutex: overlapping triggers (scheduler + manual command)
// would otherwise interleave read-modify-writes on the same notes.
type Engine struct {
	mu     sync.Mutex
	graph  index.LinkGraph
	attrs  Attributes
	source Durations
	cfg    Config
	logger *slog.Logger
}

// New creates an Engine over the given collaborators.
func New(graph index.LinkGraph, attrStore Attributes, source Durations, cfg Config, logger *slog.Logger) *Engine {
	if cfg.ChildKey == "" {
		cfg.ChildKey = models.DefaultChildKey
	}
	return &Engine{
		graph:  graph,
		attrs:  attrStore,
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// ChildKey returns the attribute name used for descendant aggregates.
func (e *Engine) ChildKey() string {
	return e.cfg.ChildKey
}

// Recompute rebuilds the whole tree from the configured root: every note's
// own elapsed time is refreshed from its tracker blocks, descendant
// aggregates are recomputed recursively, and display sizes are rescaled.
func (e *Engine) Recompute(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	root, err := e.requireRoot()
	if err != nil {
		return err
	}

	e.refreshElapsedTree(root, make(map[string]struct{}))
	if _, err := e.aggregateChildTimes(root, true, true, make(map[string]struct{})); err != nil {
		return err
	}
	return e.normalizeSizes(root)
}

// Touch refreshes one note's own elapsed value, propagates the change up the
// resolved parent chain, and rescales the whole tree from the root.
func (e *Engine) Touch(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ok, err := e.graph.Exists(path)
	if err != nil {
		return fmt.Errorf("tree: %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("tree: %s: %w", path, apperr.ErrNotFound)
	}

	if _, err := e.updateElapsed(path); err != nil {
		return err
	}
	if err := e.propagateUp(path, map[string]struct{}{path: {}}); err != nil {
		return err
	}

	if e.cfg.RootNote == "" {
		e.logger.Warn("tree: no root configured, node sizes stay stale", slog.String("path", path))
		return nil
	}
	return e.normalizeSizes(e.cfg.RootNote)
}

// Summary is a read-only view of one note's derived attributes.
type Summary struct {
	Path        string  `json:"path"`
	Elapsed     float64 `json:"elapsed"`
	ChildSum    float64 `json:"elapsed_child"`
	Accumulated float64 `json:"accumulated"`
	ElapsedText string  `json:"elapsed_text"`
	NodeSize    float64 `json:"node_size"`
	Running     bool    `json:"running"`
	Parent      string  `json:"parent,omitempty"`
}

// Summarize reads a note's stored attributes without recomputing anything.
func (e *Engine) Summarize(_ context.Context, path string) (*Summary, error) {
	ok, err := e.graph.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("tree: %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("tree: %s: %w", path, apperr.ErrNotFound)
	}
	own, err := e.attrs.Number(path, models.AttrElapsed)
	if err != nil {
		return nil, err
	}
	childSum, err := e.attrs.Number(path, e.cfg.ChildKey)
	if err != nil {
		return nil, err
	}
	size, err := e.attrs.Number(path, models.AttrNodeSize)
	if err != nil {
		return nil, err
	}
	running, _ := e.attrs.Bool(path, models.AttrRunning)
	parent, _ := e.ResolveParent(path)
	acc := own + childSum
	return &Summary{
		Path:        path,
		Elapsed:     own,
		ChildSum:    childSum,
		Accumulated: acc,
		ElapsedText: FormatElapsed(acc),
		NodeSize:    size,
		Running:     running,
		Parent:      parent,
	}, nil
}

// updateElapsed queries the duration source and stores the note's own
// elapsed seconds plus the running flag. Returns the stored value.
func (e *Engine) updateElapsed(path string) (float64, error) {
	sessions, err := e.source.SessionsFor(path)
	if err != nil {
		return 0, fmt.Errorf("tree: sessions for %s: %w", path, err)
	}
	total, running := e.source.Total(sessions, e.cfg.OnlyFirstTracker)
	err = e.attrs.Update(path, func(a map[string]interface{}) map[string]interface{} {
		a[models.AttrElapsed] = total
		a[models.AttrRunning] = running
		return a
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// refreshElapsedTree stores the note's own elapsed value, then walks every
// resolved outgoing link. Failures are logged and the walk continues with
// sibling branches. The visited set keeps link cycles from looping.
func (e *Engine) refreshElapsedTree(path string, visited map[string]struct{}) {
	if _, ok := visited[path]; ok {
		return
	}
	visited[path] = struct{}{}

	if _, err := e.updateElapsed(path); err != nil {
		e.logger.Warn("tree: elapsed update failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	children, err := e.children(path)
	if err != nil {
		e.logger.Warn("tree: outgoing failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	for _, child := range children {
		e.refreshElapsedTree(child, visited)
	}
}

// children returns the note's resolved outgoing links restricted to the
// configured scope. The tree never crosses the root-folder boundary in either
// direction.
func (e *Engine) children(path string) ([]string, error) {
	out, err := e.graph.Outgoing(path)
	if err != nil {
		return nil, err
	}
	filtered := make([]string, 0, len(out))
	for _, child := range out {
		if e.inScope(child) {
			filtered = append(filtered, child)
		}
	}
	return filtered, nil
}

// aggregateChildTimes recomputes the descendant aggregate for path.
//
// With recursive set, each child's subtree is freshly aggregated; otherwise
// the child's stored elapsed + aggregate are trusted as-is (the mode the
// ascendant walk uses, so a single edit does not re-walk the whole tree).
// Returns own+aggregate, or just the aggregate when includeOwn is false.
//
// A note with no resolved children gets its aggregate reset to 0; its own
// elapsed is additionally reset to 0 only when it was already 0, so a value
// the duration source never visited still reads as a defined number.
func (e *Engine) aggregateChildTimes(path string, recursive, includeOwn bool, visited map[string]struct{}) (float64, error) {
	visited[path] = struct{}{}

	own, err := e.attrs.Number(path, models.AttrElapsed)
	if err != nil {
		return 0, err
	}

	children, err := e.children(path)
	if err != nil {
		return 0, err
	}

	if len(children) == 0 {
		err := e.attrs.Update(path, func(a map[string]interface{}) map[string]interface{} {
			a[e.cfg.ChildKey] = float64(0)
			if own == 0 {
				a[models.AttrElapsed] = float64(0)
			}
			return a
		})
		if err != nil {
			return 0, err
		}
		if includeOwn {
			return own, nil
		}
		return 0, nil
	}

	var total float64
	for _, child := range children {
		_, seen := visited[child]
		if recursive && !seen {
			sub, err := e.aggregateChildTimes(child, true, true, visited)
			if err != nil {
				e.logger.Warn("tree: child aggregate failed", slog.String("path", child), slog.String("error", err.Error()))
				continue
			}
			total += sub
			continue
		}
		// Trust stored values: either non-recursive mode, or a cycle
		// brought us back to a note already being aggregated.
		childOwn, err := e.attrs.Number(child, models.AttrElapsed)
		if err != nil {
			e.logger.Warn("tree: child read failed", slog.String("path", child), slog.String("error", err.Error()))
			continue
		}
		childAgg, err := e.attrs.Number(child, e.cfg.ChildKey)
		if err != nil {
			e.logger.Warn("tree: child read failed", slog.String("path", child), slog.String("error", err.Error()))
			continue
		}
		total += childOwn + childAgg
	}

	err = e.attrs.Update(path, func(a map[string]interface{}) map[string]interface{} {
		a[e.cfg.ChildKey] = total
		return a
	})
	if err != nil {
		return 0, err
	}

	if includeOwn {
		return own + total, nil
	}
	return total, nil
}

// propagateUp walks the resolved parent chain, recomputing each ancestor's
// aggregate from its children's stored values. The visited set bounds the
// walk: the parent relation is backlink-derived and nothing guarantees it is
// acyclic.
func (e *Engine) propagateUp(path string, visited map[string]struct{}) error {
	parent, ok := e.ResolveParent(path)
	if !ok {
		return nil
	}
	if _, seen := visited[parent]; seen {
		e.logger.Warn("tree: parent cycle detected, stopping upward walk",
			slog.String("path", path), slog.String("parent", parent))
		return nil
	}
	visited[parent] = struct{}{}

	if _, err := e.aggregateChildTimes(parent, false, false, make(map[string]struct{})); err != nil {
		return err
	}
	return e.propagateUp(parent, visited)
}

// requireRoot validates that a root note is configured and indexed.
func (e *Engine) requireRoot() (string, error) {
	root := e.cfg.RootNote
	if root == "" {
		return "", apperr.ErrNoRoot
	}
	ok, err := e.graph.Exists(root)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("tree: root %s: %w", root, apperr.ErrNotFound)
	}
	return root, nil
}
