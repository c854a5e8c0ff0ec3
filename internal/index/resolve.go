package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/lucasmnt/timetree/internal/models"
)

// ResolveTarget maps a raw wikilink target to an indexed note path.
// Obsidian-style matching: an exact path, the path with .md appended, or any
// note whose filename stem equals the target. Ambiguous stems resolve to the
// shortest path, then lexicographically smallest, so resolution is
// deterministic. Returns ok=false for dangling targets.
func (db *DB) ResolveTarget(target string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	pattern := "%/" + escapeLike(target) + ".md"
	var path string
	err := db.conn.QueryRow(`
		SELECT path FROM notes
		WHERE path = ?1 OR path = ?1 || '.md' OR path LIKE ?2 ESCAPE '\'
		ORDER BY LENGTH(path), path
		LIMIT 1
	`, target, pattern).Scan(&path)
	if err != nil {
		return "", false
	}
	return path, true
}

// Outgoing returns the resolved targets of a note's outgoing links, in link
// order. Dangling links are silently dropped; a target resolving back to the
// source itself is dropped too (self-loops carry no aggregation meaning).
func (db *DB) Outgoing(source string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT target FROM links WHERE source = ? ORDER BY rowid`, source)
	if err != nil {
		return nil, fmt.Errorf("index: outgoing: %w", err)
	}
	defer rows.Close()

	var raw []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		raw = append(raw, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]struct{})
	for _, t := range raw {
		path, ok := db.ResolveTarget(t)
		if !ok || path == source {
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out, nil
}

// Backlinks returns the notes whose outgoing links resolve to target,
// together with their creation timestamps. Each candidate's raw link text is
// re-resolved so backlinks stay consistent with Outgoing's disambiguation.
// The query only pre-filters: any raw text that can resolve to target either
// is the full path or ends in the filename stem, so subpath links like
// sub/Note are candidates too.
func (db *DB) Backlinks(target string) ([]models.Backlink, error) {
	stem := strings.TrimSuffix(target, ".md")
	base := stem
	if i := strings.LastIndex(stem, "/"); i >= 0 {
		base = stem[i+1:]
	}

	rows, err := db.conn.Query(`
		SELECT DISTINCT n.path, n.created_at, l.target
		FROM links l JOIN notes n ON n.path = l.source
		WHERE l.target = ?1 OR l.target LIKE ?2 ESCAPE '\'
		ORDER BY n.path
	`, target, "%"+escapeLike(base))
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		path    string
		created int64
		raw     string
	}
	var cands []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.path, &c.created, &c.raw); err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []models.Backlink
	seen := make(map[string]struct{})
	for _, c := range cands {
		if resolved, ok := db.ResolveTarget(c.raw); !ok || resolved != target {
			continue
		}
		if c.path == target {
			continue
		}
		if _, dup := seen[c.path]; dup {
			continue
		}
		seen[c.path] = struct{}{}
		out = append(out, models.Backlink{
			Path:      c.path,
			CreatedAt: time.Unix(c.created, 0).UTC(),
		})
	}
	return out, nil
}

// GraphNode is one note in a graph snapshot.
type GraphNode struct {
	Path  string
	Title string
}

// GraphEdge is one resolved link in a graph snapshot.
type GraphEdge struct {
	Source string
	Target string
}

// Graph returns every indexed note and every resolved link edge.
func (db *DB) Graph() ([]GraphNode, []GraphEdge, error) {
	rows, err := db.conn.Query(`SELECT path, title FROM notes ORDER BY path`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.Path, &n.Title); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var edges []GraphEdge
	for _, n := range nodes {
		targets, err := db.Outgoing(n.Path)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range targets {
			edges = append(edges, GraphEdge{Source: n.Path, Target: t})
		}
	}
	return nodes, edges, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
