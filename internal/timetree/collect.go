package timetree

import "log/slog"

// CollectDescendants returns every note reachable from path through resolved
// outgoing links, in depth-first pre-order, excluding path itself. Children
// outside the folder scope are not entered. A visited set keyed by note path
// guarantees termination and exactly-once inclusion on cyclic or diamond
// graphs: a note reachable via two paths is attached to whichever path
// reaches it first.
func (e *Engine) CollectDescendants(path string) []string {
	visited := map[string]struct{}{path: {}}
	var out []string
	e.collect(path, visited, &out)
	return out
}

func (e *Engine) collect(path string, visited map[string]struct{}, out *[]string) {
	children, err := e.children(path)
	if err != nil {
		e.logger.Warn("tree: outgoing failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	for _, child := range children {
		if _, seen := visited[child]; seen {
			continue
		}
		visited[child] = struct{}{}
		*out = append(*out, child)
		e.collect(child, visited, out)
	}
}
