package tracefile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	filePrefix = "trace_"
	fileSuffix = ".trace"
)

// FileName returns the trace file name for a run started at start.
func FileName(start time.Time) string {
	return filePrefix + strconv.FormatInt(start.UnixMilli(), 10) + fileSuffix
}

// ParseFileName recovers the start time from a name produced by FileName.
func ParseFileName(name string) (time.Time, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileSuffix) {
		return time.Time{}, fmt.Errorf("not a trace file name: %q", base)
	}
	ms, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(base, filePrefix), fileSuffix), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a trace file name: %q: %w", base, err)
	}
	return time.UnixMilli(ms), nil
}

// Create makes dir if needed and creates the trace file for start in it.
// The file is created exclusively; an existing file with the same name is an
// error, never truncated.
func Create(dir string, start time.Time) (*os.File, string, error) {
	if dir == "" {
		return nil, "", fmt.Errorf("create trace file: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create trace dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName(start))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("create trace file: %w", err)
	}
	return f, path, nil
}

// List returns the trace files in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}

	type entry struct {
		path  string
		start time.Time
	}
	var found []entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		start, err := ParseFileName(e.Name())
		if err != nil {
			continue
		}
		found = append(found, entry{filepath.Join(dir, e.Name()), start})
	}

	// names share a prefix but millis may differ in digit count
	slices.SortFunc(found, func(a, b entry) int { return a.start.Compare(b.start) })

	paths := make([]string, len(found))
	for i, e := range found {
		paths[i] = e.path
	}
	return paths, nil
}
