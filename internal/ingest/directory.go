package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/filefolio/docfolio/constants"
	"github.com/filefolio/docfolio/internal/common"
)

// FileResult is the per-file outcome of a directory scan.
type FileResult struct {
	Path         string
	DocumentID   string
	Deduplicated bool
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// IngestDirectory walks root and ingests every file with an allowed
// extension, fanning the matched paths out over a pool of workers. Hidden
// files and directories are skipped when skipHidden is set. Per-file
// failures are recorded and the batch continues.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden bool, workers int) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	if workers <= 0 {
		workers = 4
	}

	var stats DirStats
	var paths []string
	var results []FileResult

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			stats.Scanned++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return results, stats, err
	}

	for _, r := range s.ingestPaths(ctx, paths, workers) {
		switch {
		case r.Deduplicated:
			stats.Deduplicated++
		case r.Err != "":
			stats.Failed++
		default:
			stats.Succeeded++
		}
		results = append(results, r)
	}

	s.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

func (s *Service) ingestPaths(ctx context.Context, paths []string, workers int) []FileResult {
	if workers > len(paths) {
		workers = len(paths)
	}
	jobs := make(chan string)
	out := make(chan FileResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				out <- s.ingestOne(ctx, path)
			}
		}()
	}

	for _, p := range paths {
		select {
		case jobs <- p:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]FileResult, 0, len(paths))
	for r := range out {
		results = append(results, r)
	}
	return results
}

func (s *Service) ingestOne(ctx context.Context, path string) FileResult {
	doc, err := s.IngestFile(ctx, path)
	if err != nil {
		if dup, ok := common.AsDuplicate(err); ok {
			return FileResult{Path: path, DocumentID: dup.DocumentID, Deduplicated: true}
		}
		return FileResult{Path: path, Err: err.Error()}
	}
	return FileResult{Path: path, DocumentID: doc.ID.String()}
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
