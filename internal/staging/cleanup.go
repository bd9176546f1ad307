package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"framepipe/internal/logging"
)

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// DirInfo describes one job frame directory.
type DirInfo struct {
	JobID   string
	Path    string
	ModTime time.Time
	Files   int
	Size    int64
}

// CleanOrphaned removes frame directories whose name is not in activeJobs.
// Directories younger than minAge are kept so a job that is being submitted
// while the cleanup runs does not lose its frames.
func CleanOrphaned(ctx context.Context, framesDir string, activeJobs map[string]struct{}, minAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	framesDir = strings.TrimSpace(framesDir)
	if framesDir == "" {
		return result
	}

	entries, err := os.ReadDir(framesDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: framesDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-minAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		if _, active := activeJobs[entry.Name()]; active {
			continue
		}

		dirPath := filepath.Join(framesDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logger.Warn("failed to remove orphaned frame directory",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "frames_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check frames_dir permissions"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed orphaned frame directory",
			logging.String(logging.FieldJobID, entry.Name()),
			logging.String("path", dirPath),
			logging.String(logging.FieldEventType, "frames_cleanup"),
		)
	}

	return result
}

// ListDirectories returns the job frame directories with their usage.
func ListDirectories(framesDir string) ([]DirInfo, error) {
	framesDir = strings.TrimSpace(framesDir)
	if framesDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(framesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirPath := filepath.Join(framesDir, entry.Name())
		files, size := dirUsage(dirPath)
		dirs = append(dirs, DirInfo{
			JobID:   entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Files:   files,
			Size:    size,
		})
	}

	return dirs, nil
}

// dirUsage counts regular files and bytes under path, best effort.
func dirUsage(path string) (int, int64) {
	var (
		files int
		size  int64
	)
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Mode().IsRegular() {
			files++
			size += info.Size()
		}
		return nil
	})
	return files, size
}
