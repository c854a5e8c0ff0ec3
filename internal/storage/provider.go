// Package storage defines the vault file-system abstraction.
package storage

import "github.com/lucasmnt/timetree/internal/models"

// Provider is the interface for vault file operations. The engine never
// creates or deletes notes; it only reads them and rewrites their content in
// place, so the surface is deliberately small.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault root).
	List(dir string) ([]models.NoteMeta, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the content of the file at path.
	Write(path string, content []byte) error
}
