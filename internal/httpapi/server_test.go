package httpapi

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/austinkregel/rune-musicd/internal/audio"
	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/engine"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	opener := audio.NewTrackOpener(func(samples []int16, channels int) {})
	eng := engine.New(opener, nil, engine.NewCancellation())
	go eng.Run()
	t.Cleanup(func() { eng.Commands() <- engine.Command{Kind: engine.CmdStop} })

	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return New(eng, db, nil)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusEndpointReportsStoppedByDefault(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"state":"Stopped"`) {
		t.Errorf("expected Stopped state in body, got %s", body)
	}
}

func TestCatalogStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/catalog", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"totalFiles":0`) {
		t.Errorf("expected zero files in empty catalog, got %s", body)
	}
}

func TestCommunitiesEndpointWithNilStore(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/communities", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"communities":[]`) {
		t.Errorf("expected empty communities with nil store, got %s", body)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
}
