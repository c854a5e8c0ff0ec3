package timetree

import (
	"testing"
	"time"
)

func TestCollectDescendants_CycleAndDiamond(t *testing.T) {
	// a → b → a (cycle), plus r → a, r → b, b → c (diamond over b and c).
	g := &fakeGraph{
		out: map[string][]string{
			"r.md": {"a.md", "b.md"},
			"a.md": {"b.md"},
			"b.md": {"a.md", "c.md"},
			"c.md": {},
		},
		created: map[string]time.Time{},
	}
	e := newTestEngine(g, newFakeAttrs(), &fakeSource{seconds: map[string]float64{}, running: map[string]bool{}}, Config{})

	got := e.CollectDescendants("r.md")
	want := []string{"a.md", "b.md", "c.md"}
	if len(got) != len(want) {
		t.Fatalf("descendants = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("descendants[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectDescendants_ScopeFilter(t *testing.T) {
	g := &fakeGraph{
		out: map[string][]string{
			"tree/r.md":       {"tree/in.md", "elsewhere/out.md"},
			"tree/in.md":      {"tree/deep/d.md"},
			"elsewhere/out.md": {},
			"tree/deep/d.md":  {},
		},
		created: map[string]time.Time{},
	}

	// Any-depth scope: elsewhere/ is excluded, tree/deep/ is included.
	e := newTestEngine(g, newFakeAttrs(), &fakeSource{seconds: map[string]float64{}, running: map[string]bool{}},
		Config{RootFolder: "tree", ConsiderSubdirs: true})
	got := e.CollectDescendants("tree/r.md")
	if len(got) != 2 || got[0] != "tree/in.md" || got[1] != "tree/deep/d.md" {
		t.Errorf("descendants = %v", got)
	}

	// Direct-child scope: tree/deep/ is excluded too.
	e = newTestEngine(g, newFakeAttrs(), &fakeSource{seconds: map[string]float64{}, running: map[string]bool{}},
		Config{RootFolder: "tree", ConsiderSubdirs: false})
	got = e.CollectDescendants("tree/r.md")
	if len(got) != 1 || got[0] != "tree/in.md" {
		t.Errorf("descendants = %v", got)
	}
}
