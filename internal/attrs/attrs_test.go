package attrs

import (
	"errors"
	"strings"
	"testing"

	"github.com/lucasmnt/timetree/internal/apperr"
	"github.com/lucasmnt/timetree/internal/storage"
)

func newTestStore(t *testing.T) (*Store, storage.Provider) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewStore(fs), fs
}

func TestUpdate_SetsAndPreservesOrder(t *testing.T) {
	s, fs := newTestStore(t)
	content := "---\ntitle: My Note\ntags:\n  - focus\nelapsed: 10\n---\nBody line.\n[[link]]\n"
	if err := fs.Write("a.md", []byte(content)); err != nil {
		t.Fatal(err)
	}

	err := s.Update("a.md", func(attrs map[string]interface{}) map[string]interface{} {
		attrs["elapsed"] = 120
		attrs["elapsed_child"] = 60
		return attrs
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := fs.Read("a.md")
	text := string(got)
	if !strings.HasSuffix(text, "---\nBody line.\n[[link]]\n") {
		t.Errorf("body not preserved:\n%s", text)
	}
	// title stays first, elapsed keeps its slot, new key is appended.
	if strings.Index(text, "title:") > strings.Index(text, "elapsed:") {
		t.Errorf("key order not preserved:\n%s", text)
	}
	if !strings.Contains(text, "elapsed: 120") || !strings.Contains(text, "elapsed_child: 60") {
		t.Errorf("updated attributes missing:\n%s", text)
	}
	if !strings.Contains(text, "- focus") {
		t.Errorf("untouched list attribute lost:\n%s", text)
	}
}

func TestUpdate_CreatesFrontmatter(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("bare.md", []byte("# Heading\ntext\n")); err != nil {
		t.Fatal(err)
	}

	err := s.Update("bare.md", func(attrs map[string]interface{}) map[string]interface{} {
		attrs["elapsed"] = 5
		return attrs
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := fs.Read("bare.md")
	want := "---\nelapsed: 5\n---\n# Heading\ntext\n"
	if string(got) != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestUpdate_DeletesRemovedKeys(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("a.md", []byte("---\nkeep: 1\ndrop: 2\n---\nbody\n")); err != nil {
		t.Fatal(err)
	}

	err := s.Update("a.md", func(attrs map[string]interface{}) map[string]interface{} {
		delete(attrs, "drop")
		return attrs
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := fs.Read("a.md")
	if strings.Contains(string(got), "drop:") {
		t.Errorf("removed key still present:\n%s", got)
	}
	if !strings.Contains(string(got), "keep: 1") {
		t.Errorf("kept key lost:\n%s", got)
	}
}

func TestUpdate_NoChangeSkipsWrite(t *testing.T) {
	s, fs := newTestStore(t)
	content := "---\nelapsed: 5\nrunning: false\n# hand-written comment\n---\nbody\n"
	if err := fs.Write("a.md", []byte(content)); err != nil {
		t.Fatal(err)
	}

	// Same values, different Go types: int 5 on disk, float64 5 from the engine.
	err := s.Update("a.md", func(attrs map[string]interface{}) map[string]interface{} {
		attrs["elapsed"] = float64(5)
		attrs["running"] = false
		return attrs
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := fs.Read("a.md")
	if string(got) != content {
		t.Errorf("unchanged update rewrote file:\n%s", got)
	}
}

func TestUpdate_MalformedFrontmatterFailsClosed(t *testing.T) {
	s, fs := newTestStore(t)
	content := "---\n: bad: yaml: {{{\n---\nbody\n"
	if err := fs.Write("bad.md", []byte(content)); err != nil {
		t.Fatal(err)
	}

	err := s.Update("bad.md", func(attrs map[string]interface{}) map[string]interface{} {
		attrs["elapsed"] = 1
		return attrs
	})
	if !errors.Is(err, apperr.ErrBadFrontmatter) {
		t.Fatalf("err = %v, want ErrBadFrontmatter", err)
	}

	got, _ := fs.Read("bad.md")
	if string(got) != content {
		t.Errorf("note modified despite parse failure:\n%s", got)
	}
}

func TestUpdate_NonMappingFrontmatter(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("seq.md", []byte("---\n- a\n- b\n---\nbody\n")); err != nil {
		t.Fatal(err)
	}
	err := s.Update("seq.md", func(attrs map[string]interface{}) map[string]interface{} {
		return attrs
	})
	if !errors.Is(err, apperr.ErrBadFrontmatter) {
		t.Fatalf("err = %v, want ErrBadFrontmatter", err)
	}
}

func TestNumber_CoercionAndDefaults(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("n.md", []byte("---\nint_val: 42\nfloat_val: 3.5\nstr_val: nope\n---\n")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key  string
		want float64
	}{
		{"int_val", 42},
		{"float_val", 3.5},
		{"str_val", 0},
		{"absent", 0},
	}
	for _, tt := range tests {
		got, err := s.Number("n.md", tt.key)
		if err != nil {
			t.Fatalf("Number(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Number(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestBool(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("b.md", []byte("---\nrunning: true\n---\n")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Bool("b.md", "running")
	if err != nil || !got {
		t.Errorf("Bool = %v, %v; want true, nil", got, err)
	}
	got, err = s.Bool("b.md", "absent")
	if err != nil || got {
		t.Errorf("Bool(absent) = %v, %v; want false, nil", got, err)
	}
}

func TestNumber_NoFrontmatterReadsZero(t *testing.T) {
	s, fs := newTestStore(t)
	if err := fs.Write("plain.md", []byte("just text\n")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Number("plain.md", "elapsed")
	if err != nil || got != 0 {
		t.Errorf("Number = %v, %v; want 0, nil", got, err)
	}
}
