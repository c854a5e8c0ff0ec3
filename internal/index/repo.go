package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NoteRow represents a row in the notes table. CreatedAt is zero when the
// note's creation time is unknown to the caller; the stored value is then
// left untouched on upsert.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertNote inserts or replaces a note and its outgoing links within a
// transaction. Link targets are stored raw; resolution happens at query time
// so a dangling link becomes live the moment its target note appears.
func (db *DB) UpsertNote(n NoteRow, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var created int64
	if !n.CreatedAt.IsZero() {
		created = n.CreatedAt.Unix()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			created_at = CASE WHEN excluded.created_at > 0 THEN excluded.created_at ELSE notes.created_at END,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, created, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(n.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing links.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM notes WHERE path = ?`, path)

	return tx.Commit()
}

// Exists reports whether a note is indexed at the given path. A missing row
// is (false, nil); any other query failure is returned.
func (db *DB) Exists(path string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM notes WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: exists: %w", err)
	}
	return true, nil
}

// Title returns the indexed title for a note, or empty string for an
// unknown note.
func (db *DB) Title(path string) (string, error) {
	var title string
	err := db.conn.QueryRow(`SELECT title FROM notes WHERE path = ?`, path).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: title: %w", err)
	}
	return title, nil
}

// CreatedAt returns the stored creation timestamp for a note, or zero time
// when the note is unknown or has no recorded creation time.
func (db *DB) CreatedAt(path string) (time.Time, error) {
	var created int64
	err := db.conn.QueryRow(`SELECT created_at FROM notes WHERE path = ?`, path).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("index: created at: %w", err)
	}
	if created == 0 {
		return time.Time{}, nil
	}
	return time.Unix(created, 0).UTC(), nil
}

// AllChecksums returns path → checksum for every indexed note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
