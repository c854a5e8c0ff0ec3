package index

import "github.com/lucasmnt/timetree/internal/models"

// LinkGraph is the read surface the aggregation engine depends on.
type LinkGraph interface {
	Outgoing(source string) ([]string, error)
	Backlinks(target string) ([]models.Backlink, error)
	Exists(path string) (bool, error)
}

// Verify *DB satisfies LinkGraph at compile time.
var _ LinkGraph = (*DB)(nil)
