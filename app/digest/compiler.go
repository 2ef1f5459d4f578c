package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/curatehq/curator/app/database"
)

// Result is the outcome of one successful compilation: the digest record,
// its member items in selection order, and where the rendered document was
// written.
type Result struct {
	Digest database.Digest
	Items  []database.Item
	Path   string
}

// Compiler turns the eligible items of a time window into a digest. The
// store transaction inside CompileWindow prevents double-selection, but the
// published flag is checked-then-set, so the compiler additionally holds an
// advisory lock to guarantee at most one active compilation per process.
type Compiler struct {
	digestRepo database.DigestRepository
	generator  *Generator
	writer     *Writer
	mu         sync.Mutex
}

func NewCompiler(digestRepo database.DigestRepository, generator *Generator, writer *Writer) *Compiler {
	return &Compiler{
		digestRepo: digestRepo,
		generator:  generator,
		writer:     writer,
	}
}

// Run compiles the window [windowStart, windowEnd]. It returns (nil, nil)
// when no items are eligible: an empty window is an expected outcome, not
// an error, and no digest row is created for it. Repeated runs over
// overlapping windows are safe; already-published items are never
// re-selected.
func (c *Compiler) Run(ctx context.Context, windowStart, windowEnd time.Time) (*Result, error) {
	if windowEnd.Before(windowStart) {
		return nil, fmt.Errorf("invalid window: end %s before start %s",
			windowEnd.Format(time.RFC3339), windowStart.Format(time.RFC3339))
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The output location is part of the digest row and the row is
	// immutable, so the path is reserved before compilation.
	path := c.writer.NextAvailablePath(time.Now())

	digest, items, err := c.digestRepo.CompileWindow(windowStart, windowEnd, path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile digest: %w", err)
	}

	if digest == nil {
		slog.Debug("No eligible items in window, digest not created",
			"window_start", windowStart, "window_end", windowEnd)
		return nil, nil
	}

	content := c.generator.Run(*digest, items)
	if err := c.writer.Write(path, content); err != nil {
		// The digest row is already committed; the renderer output can be
		// regenerated from it, so report the failure without unwinding.
		return nil, fmt.Errorf("digest %d compiled but not written: %w", digest.ID, err)
	}

	slog.Info("Digest compiled",
		"digest_id", digest.ID,
		"items", digest.ItemCount,
		"path", path)

	return &Result{Digest: *digest, Items: items, Path: path}, nil
}
