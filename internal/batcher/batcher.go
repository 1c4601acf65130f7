// Package batcher implements the analysis batcher: it
// enumerates cataloged files not yet analyzed, dispatches parallel
// feature extraction per batch, and persists results transactionally.
package batcher

import (
	"fmt"
	"log"
	"runtime"
	"sync"

	"github.com/austinkregel/rune-musicd/internal/catalog"
	"github.com/austinkregel/rune-musicd/internal/engine"
)

// BatchSize returns clamp(floor(2*cores/3), 1, 1000) (cores defaults to
// runtime.NumCPU()).
func BatchSize(cores int) int {
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	b := (2 * cores) / 3
	if b < 1 {
		b = 1
	}
	if b > 1000 {
		b = 1000
	}
	return b
}

// Extractor computes a NormalizedAnalysisResult (and an opaque extra
// payload carrying the richer feature set) for one file. A per-file
// error is isolated by the batcher rather than aborting the run.
type Extractor interface {
	Analyze(absPath string) (catalog.NormalizedAnalysisResult, []byte, error)
}

// ProgressFunc is invoked after each batch commits, with the number of
// files processed so far and the fixed total cataloged at run start.
type ProgressFunc func(processed, total int)

// Run executes one full pass over the catalog's unanalyzed files. root
// is the library root used to resolve file ids to absolute paths.
// It returns the count of files cataloged at the start of the run.
func Run(db *catalog.DB, root string, extractor Extractor, cancel *engine.Cancellation, progress ProgressFunc) (int, error) {
	total, err := db.TotalCount()
	if err != nil {
		return 0, fmt.Errorf("counting catalog: %w", err)
	}

	batchSize := BatchSize(0)
	var cursor int64
	processed := 0

	for {
		if cancel != nil && cancel.IsCancelled() {
			log.Printf("[BATCH] cancelled after %d/%d files", processed, total)
			return total, nil
		}

		ids, err := db.UnanalyzedIDs(cursor, batchSize)
		if err != nil {
			return total, fmt.Errorf("listing unanalyzed files: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		type result struct {
			id  int64
			res catalog.NormalizedAnalysisResult
			extra []byte
			err error
		}
		results := make([]result, len(ids))

		var wg sync.WaitGroup
		for i, id := range ids {
			wg.Add(1)
			go func(i int, id int64) {
				defer wg.Done()
				path, lookupErr := pathForID(db, root, id)
				if lookupErr != nil {
					results[i] = result{id: id, err: lookupErr}
					return
				}
				res, extra, err := extractor.Analyze(path)
				results[i] = result{id: id, res: res, extra: extra, err: err}
			}(i, id)
		}
		wg.Wait()

		tx, err := db.BeginBatch()
		if err != nil {
			return total, fmt.Errorf("beginning batch transaction: %w", err)
		}

		ok := 0
		for _, r := range results {
			if r.err != nil {
				log.Printf("[BATCH] skipping file id=%d: %v", r.id, r.err)
				continue
			}
			if err := catalog.InsertAnalysis(tx, r.id, r.res, r.extra); err != nil {
				tx.Rollback()
				return total, fmt.Errorf("inserting analysis for file id=%d: %w", r.id, err)
			}
			ok++
		}

		if err := tx.Commit(); err != nil {
			return total, fmt.Errorf("committing batch: %w", err)
		}

		processed += len(ids)
		cursor = ids[len(ids)-1]
		if progress != nil {
			progress(processed, total)
		}
		_ = ok
	}

	return total, nil
}

func pathForID(db *catalog.DB, root string, id int64) (string, error) {
	fd, err := db.FileByID(id)
	if err != nil {
		return "", err
	}
	return fd.FullPath(root), nil
}
