package batcher

import (
	"path/filepath"
	"testing"

	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/engine"
)

func TestBatchSizeClamps(t *testing.T) {
	cases := map[int]int{
		1:    1,
		3:    2,
		6:    4,
		2000: 1000,
	}
	for cores, want := range cases {
		if got := BatchSize(cores); got != want {
			t.Errorf("BatchSize(%d) = %d, want %d", cores, got, want)
		}
	}

	// cores <= 0 falls back to runtime.NumCPU(), which is always >= 1.
	if got := BatchSize(0); got < 1 {
		t.Errorf("BatchSize(0) = %d, want >= 1", got)
	}
}

type fakeExtractor struct {
	calls int
}

func (e *fakeExtractor) Analyze(absPath string) (catalog.NormalizedAnalysisResult, []byte, error) {
	e.calls++
	v := 0.5
	return catalog.NormalizedAnalysisResult{Centroid: &v}, []byte("extra"), nil
}

func newTestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAnalyzesAllUnanalyzedFiles(t *testing.T) {
	db := newTestCatalog(t)

	for i := 0; i < 5; i++ {
		fd := &catalog.FileDescription{
			Directory: "artist/album",
			FileName:  "track.mp3",
		}
		if _, err := db.InsertFile(fd); err != nil {
			t.Fatalf("inserting file: %v", err)
		}
	}

	extractor := &fakeExtractor{}
	total, err := Run(db, "/music", extractor, nil, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if extractor.calls != 5 {
		t.Fatalf("expected extractor called 5 times, got %d", extractor.calls)
	}

	remaining, err := db.UnanalyzedIDs(0, 10)
	if err != nil {
		t.Fatalf("UnanalyzedIDs: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no unanalyzed files left, got %v", remaining)
	}
}

func TestRunRespectsCancellation(t *testing.T) {
	db := newTestCatalog(t)
	for i := 0; i < 3; i++ {
		fd := &catalog.FileDescription{Directory: "a", FileName: "t.mp3"}
		if _, err := db.InsertFile(fd); err != nil {
			t.Fatalf("inserting file: %v", err)
		}
	}

	cancel := engine.NewCancellation()
	cancel.Cancel()

	extractor := &fakeExtractor{}
	total, err := Run(db, "/music", extractor, cancel, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if extractor.calls != 0 {
		t.Fatalf("expected no analysis once cancelled, got %d calls", extractor.calls)
	}
}
