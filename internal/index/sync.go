package index

import (
	"log/slog"
	"time"

	"github.com/lucasmnt/timetree/internal/checksum"
	"github.com/lucasmnt/timetree/internal/parser"
	"github.com/lucasmnt/timetree/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
//
// Unchanged files (matching checksum) are skipped without re-parsing.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the DB. The creation timestamp
// comes from the frontmatter "created" field when present. Otherwise the
// already-stored value is kept, and a note seen for the first time falls back
// to fallbackCreated (its mtime on sync, the wall clock on watcher events).
func indexFile(db *DB, path string, data []byte, fallbackCreated time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	created := res.Created
	if created.IsZero() {
		existing, _ := db.CreatedAt(path)
		if existing.IsZero() {
			created = fallbackCreated
		}
		// Nonzero existing stays untouched: UpsertNote preserves it when
		// the new row carries no creation time.
	}

	return db.UpsertNote(NoteRow{
		Path:      path,
		Title:     res.Title,
		Checksum:  checksum.Sum(data),
		CreatedAt: created,
		UpdatedAt: time.Now(),
	}, res.Links)
}
