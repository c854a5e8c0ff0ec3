package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lucasmnt/timetree/internal/attrs"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/sse"
	"github.com/lucasmnt/timetree/internal/testutil"
	"github.com/lucasmnt/timetree/internal/timetree"
	"github.com/lucasmnt/timetree/internal/tracker"
)

func trackerBlock(seconds int) string {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(seconds) * time.Second)
	return "```simple-time-tracker\n{\"entries\": [{\"startTime\": \"" +
		start.Format(time.RFC3339) + "\", \"endTime\": \"" + end.Format(time.RFC3339) + "\"}]}\n```\n"
}

// testEnv sets up a temp vault with a small linked tree, a SQLite index, a
// real engine, and the router. authToken == "" means auth disabled.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvCfg(t, authToken, timetree.Config{
		RootNote:        "tree/root.md",
		RootFolder:      "tree",
		ConsiderSubdirs: true,
	})
}

func testEnvCfg(t *testing.T, authToken string, cfg timetree.Config) http.Handler {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	notes := map[string]string{
		"tree/root.md": "---\ncreated: 2023-01-01\ntitle: Root\n---\n[[a]] [[b]]\n",
		"tree/a.md":    "---\ncreated: 2023-01-02\n---\n" + trackerBlock(5) + "[[c]]\n",
		"tree/b.md":    trackerBlock(3),
		"tree/c.md":    trackerBlock(2),
	}
	for path, content := range notes {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	attrStore := attrs.NewStore(store)
	engine := timetree.New(db, attrStore, tracker.New(store), cfg, logger)

	return NewRouter(engine, db, attrStore, authToken != "", authToken, nil, nil)
}

func doJSON(t *testing.T, router http.Handler, method, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("unmarshal %s: %v", target, err)
		}
	}
	return w
}

func TestRecomputeAndSummary(t *testing.T) {
	router := testEnv(t, "")

	var rec RecomputeResponse
	w := doJSON(t, router, http.MethodPost, "/recompute", &rec)
	if w.Code != http.StatusOK {
		t.Fatalf("recompute = %d, body = %s", w.Code, w.Body.String())
	}
	if rec.Status != "ok" {
		t.Errorf("status = %q", rec.Status)
	}

	var sum NodeSummary
	w = doJSON(t, router, http.MethodGet, "/summary/tree/root.md", &sum)
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d, body = %s", w.Code, w.Body.String())
	}
	if sum.ChildSum != 10 {
		t.Errorf("root elapsed_child = %v, want 10", sum.ChildSum)
	}
	if sum.NodeSize != 100 {
		t.Errorf("root node_size = %v, want 100", sum.NodeSize)
	}
}

func TestTouchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var sum NodeSummary
	w := doJSON(t, router, http.MethodPost, "/touch/tree/c.md", &sum)
	if w.Code != http.StatusOK {
		t.Fatalf("touch = %d, body = %s", w.Code, w.Body.String())
	}
	if sum.Path != "tree/c.md" {
		t.Errorf("path = %q", sum.Path)
	}
	if sum.Elapsed != 2 {
		t.Errorf("elapsed = %v, want 2", sum.Elapsed)
	}
	if sum.Parent != "tree/a.md" {
		t.Errorf("parent = %q, want tree/a.md", sum.Parent)
	}
}

func TestTouch_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/touch/tree/ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("touch missing = %d, want 404", w.Code)
	}
}

func TestSummary_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/summary/tree/ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("summary missing = %d, want 404", w.Code)
	}
}

func TestRecompute_NoRootConfigured(t *testing.T) {
	router := testEnvCfg(t, "", timetree.Config{})

	w := doJSON(t, router, http.MethodPost, "/recompute", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("recompute without root = %d, want 409", w.Code)
	}
}

type captureEvents struct {
	events []sse.Event
}

func (c *captureEvents) Publish(event sse.Event) { c.events = append(c.events, event) }

func TestRecompute_PublishesEvent(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	if err := store.Write("tree/root.md", []byte(trackerBlock(5))); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	attrStore := attrs.NewStore(store)
	engine := timetree.New(db, attrStore, tracker.New(store), timetree.Config{RootNote: "tree/root.md"}, logger)

	capture := &captureEvents{}
	router := NewRouter(engine, db, attrStore, false, "", capture, nil)

	if w := doJSON(t, router, http.MethodPost, "/recompute", nil); w.Code != http.StatusOK {
		t.Fatalf("recompute = %d", w.Code)
	}
	if len(capture.events) != 1 || capture.events[0].Type != "recompute.done" {
		t.Errorf("events = %+v, want one recompute.done", capture.events)
	}
}

func TestDescendantsEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var resp DescendantsResponse
	w := doJSON(t, router, http.MethodGet, "/descendants/tree/root.md", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("descendants = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}

	w = doJSON(t, router, http.MethodGet, "/descendants/tree/ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("descendants missing = %d, want 404", w.Code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router := testEnv(t, "")

	var resp BacklinksResponse
	w := doJSON(t, router, http.MethodGet, "/backlinks/tree/a.md", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d, body = %s", w.Code, w.Body.String())
	}
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].Path != "tree/root.md" {
		t.Errorf("backlinks = %+v, want tree/root.md", resp.Backlinks)
	}
}

func TestGraphEndpoint(t *testing.T) {
	router := testEnv(t, "")

	// Recompute first so node sizes are populated.
	if w := doJSON(t, router, http.MethodPost, "/recompute", nil); w.Code != http.StatusOK {
		t.Fatalf("recompute = %d", w.Code)
	}

	var resp GraphResponse
	w := doJSON(t, router, http.MethodGet, "/graph", &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d, body = %s", w.Code, w.Body.String())
	}
	if len(resp.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(resp.Nodes))
	}
	if len(resp.Links) != 3 {
		t.Errorf("links = %d, want 3", len(resp.Links))
	}
	for _, n := range resp.Nodes {
		if n.NodeSize < 6 || n.NodeSize > 100 {
			t.Errorf("node %s size = %v, want within [6, 100]", n.ID, n.NodeSize)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/summary/tree/root.md", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed summary = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := doJSON(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/graph", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")

	w := doJSON(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests use a stub handler that blocks until context done.

func sseStubEnv(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	attrStore := attrs.NewStore(store)
	engine := timetree.New(db, attrStore, tracker.New(store), timetree.Config{}, logger)

	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	return NewRouter(engine, db, attrStore, authEnabled, token, nil, sseHandler)
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := sseStubEnv(t, true, "secret")

	w := doJSON(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := sseStubEnv(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
