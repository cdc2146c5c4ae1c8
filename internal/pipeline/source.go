package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arklore/internal/logging"
)

// FileSource reads per-owner log files from a directory, returning only
// lines appended since the previous cycle. Each owner key maps to
// <dir>/<key>.log; a missing file is an empty cycle, not an error.
type FileSource struct {
	dir string

	mu      sync.Mutex
	offsets map[string]int64
}

// NewFileSource creates a source over a directory of owner log files.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir, offsets: make(map[string]int64)}
}

// Lines returns the lines appended to the owner's log since the last call.
func (f *FileSource) Lines(_ context.Context, ownerKey string) ([]string, error) {
	path := filepath.Join(f.dir, ownerKey+".log")

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log source %s: %w", path, err)
	}
	defer file.Close()

	offset := f.offsets[ownerKey]
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < offset {
		// Truncated or rotated; start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read log source %s: %w", path, err)
	}
	f.offsets[ownerKey] = offset + int64(len(data))

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	logging.PipelineDebug("file source owner=%s read %d new lines", ownerKey, len(lines))
	return lines, nil
}

// WriterDeliverer prints commentary to a writer. The default deliverer for
// CLI runs; production deployments plug in their own transport.
type WriterDeliverer struct {
	W io.Writer
}

// Deliver writes one commentary block.
func (d WriterDeliverer) Deliver(_ context.Context, ownerKey, text string) error {
	_, err := fmt.Fprintf(d.W, "--- %s @ %s ---\n%s\n\n",
		ownerKey, time.Now().Format(time.RFC3339), text)
	return err
}
