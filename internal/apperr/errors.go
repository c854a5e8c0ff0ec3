package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrNoRoot         = errors.New("root note not configured")
	ErrBadFrontmatter = errors.New("malformed frontmatter")
)
