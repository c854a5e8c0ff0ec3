// Package attrs implements transactional read-modify-write access to
// frontmatter attributes. A note's body and any attributes a transform does
// not touch are preserved byte for byte: edits are applied to the YAML node
// tree rather than re-marshalling a map, so key order and comments survive.
package attrs

import (
	"bytes"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/lucasmnt/timetree/internal/apperr"
	"github.com/lucasmnt/timetree/internal/storage"
)

// Transform is a pure mapping from a note's current attributes to its new
// attributes. Deleting a key from the returned map removes it from the note.
type Transform func(attrs map[string]interface{}) map[string]interface{}

// Store reads and writes frontmatter attributes through a vault provider.
type Store struct {
	store storage.Provider
}

// NewStore creates an attribute store over the given vault provider.
func NewStore(store storage.Provider) *Store {
	return &Store{store: store}
}

// Update applies transform to the note's attributes and writes the result
// back. The read, transform, and write happen as one operation against a
// single content snapshot. A note whose frontmatter block does not parse is
// left untouched and the call fails with apperr.ErrBadFrontmatter.
func (s *Store) Update(path string, transform Transform) error {
	content, err := s.store.Read(path)
	if err != nil {
		return err
	}

	block, rest, hasFM := splitRaw(content)

	var doc yaml.Node
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if hasFM {
		if err := yaml.Unmarshal(block, &doc); err != nil {
			return fmt.Errorf("attrs: %s: %w", path, apperr.ErrBadFrontmatter)
		}
		if len(doc.Content) > 0 {
			mapping = doc.Content[0]
			if mapping.Kind != yaml.MappingNode {
				return fmt.Errorf("attrs: %s: frontmatter is not a mapping: %w", path, apperr.ErrBadFrontmatter)
			}
		}
	}

	current := make(map[string]interface{})
	if err := mapping.Decode(&current); err != nil && len(mapping.Content) > 0 {
		return fmt.Errorf("attrs: %s: %w", path, apperr.ErrBadFrontmatter)
	}

	updated := transform(cloneAttrs(current))
	if updated == nil {
		updated = map[string]interface{}{}
	}

	changed := false
	for key, val := range updated {
		if old, ok := current[key]; !ok || !equalValue(old, val) {
			if err := setKey(mapping, key, val); err != nil {
				return fmt.Errorf("attrs: %s: encode %q: %w", path, key, err)
			}
			changed = true
		}
	}
	for key := range current {
		if _, ok := updated[key]; !ok {
			deleteKey(mapping, key)
			changed = true
		}
	}

	// No attribute moved: leave the file alone. Touches triggered by our own
	// writes settle here instead of rewriting forever.
	if !changed {
		return nil
	}

	out, err := assemble(mapping, rest, hasFM, content)
	if err != nil {
		return fmt.Errorf("attrs: %s: %w", path, err)
	}
	return s.store.Write(path, out)
}

// Number returns the named attribute coerced to float64, or 0 when absent or
// non-numeric. Missing attributes are never an error.
func (s *Store) Number(path, key string) (float64, error) {
	attrs, err := s.read(path)
	if err != nil {
		return 0, err
	}
	switch v := attrs[key].(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, nil
	}
}

// Bool returns the named attribute as a boolean, false when absent or not a
// boolean.
func (s *Store) Bool(path, key string) (bool, error) {
	attrs, err := s.read(path)
	if err != nil {
		return false, err
	}
	b, _ := attrs[key].(bool)
	return b, nil
}

// read parses the note's attributes leniently: a note without frontmatter, or
// with an unparseable block, reads as empty. Write-side strictness lives in
// Update.
func (s *Store) read(path string) (map[string]interface{}, error) {
	content, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	block, _, hasFM := splitRaw(content)
	if !hasFM {
		return map[string]interface{}{}, nil
	}
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(block, &attrs); err != nil || attrs == nil {
		return map[string]interface{}{}, nil
	}
	return attrs, nil
}

// splitRaw separates the frontmatter block from the rest of the content
// without normalising either side. rest keeps its leading newline so the
// original byte layout can be reassembled exactly. Frontmatter is only
// recognised when the file opens with a bare --- line.
func splitRaw(content []byte) (block, rest []byte, ok bool) {
	const delim = "---"
	if !bytes.HasPrefix(content, []byte(delim+"\n")) {
		return nil, content, false
	}
	after := content[len(delim)+1:]
	idx := bytes.Index(after, []byte("\n"+delim))
	if idx < 0 {
		return nil, content, false
	}
	block = after[:idx+1]
	rest = after[idx+1+len(delim):]
	return block, rest, true
}

// assemble rebuilds the full note content from the edited mapping node and
// the untouched remainder.
func assemble(mapping *yaml.Node, rest []byte, hadFM bool, original []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	if len(mapping.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(mapping); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}

	buf.WriteString("---")
	if hadFM {
		buf.Write(rest)
	} else {
		buf.WriteString("\n")
		buf.Write(original)
	}
	return buf.Bytes(), nil
}

// setKey replaces the value of key in the mapping, or appends a new pair.
func setKey(mapping *yaml.Node, key string, value interface{}) error {
	val := &yaml.Node{}
	if err := val.Encode(value); err != nil {
		return err
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = val
			return nil
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		val,
	)
	return nil
}

func deleteKey(mapping *yaml.Node, key string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
			return
		}
	}
}

// equalValue compares attribute values with numeric coercion: YAML reads an
// integral number back as int while callers write float64, and that pair must
// not register as a change.
func equalValue(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok || bok {
		return aok && bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

func cloneAttrs(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
