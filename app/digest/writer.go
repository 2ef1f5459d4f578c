package digest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer persists rendered digests into the output directory (typically a
// note vault consumed by an external renderer/reader).
type Writer struct {
	outputDir string
}

func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// NextAvailablePath returns the path the next digest for the given date
// will be written to, adding a counter suffix when a digest for that date
// already exists.
func (w *Writer) NextAvailablePath(date time.Time) string {
	base := fmt.Sprintf("Curated Digest %s", date.Format("2006-01-02"))
	path := filepath.Join(w.outputDir, base+".md")

	counter := 1
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(w.outputDir, fmt.Sprintf("%s (%d).md", base, counter))
		counter++
	}
}

// Write stores rendered digest content at the given path, creating the
// output directory when missing.
func (w *Writer) Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write digest file: %w", err)
	}

	return nil
}
