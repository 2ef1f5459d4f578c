package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/curatehq/curator/app/digest"
)

// CompileDigestTask compiles the digest for the trailing selection window.
// An empty window is a normal outcome and not retried.
type CompileDigestTask struct {
	Task
	compiler   *digest.Compiler
	windowDays int
}

func NewCompileDigestTask(compiler *digest.Compiler, windowDays int) *CompileDigestTask {
	return &CompileDigestTask{
		Task:       NewTask(TaskTypeCompileDigest, ""),
		compiler:   compiler,
		windowDays: windowDays,
	}
}

func (t *CompileDigestTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	windowEnd := time.Now().UTC()
	windowStart := windowEnd.AddDate(0, 0, -t.windowDays)

	result, err := t.compiler.Run(ctx, windowStart, windowEnd)
	if err != nil {
		return fmt.Errorf("failed to compile digest: %w", err)
	}

	if result == nil {
		slog.Info("Task completed",
			"type", "CompileDigest",
			"duration", t.GetDuration(),
			"created", false)
		return nil
	}

	slog.Info("Task completed",
		"type", "CompileDigest",
		"duration", t.GetDuration(),
		"created", true,
		"digest_id", result.Digest.ID,
		"items", result.Digest.ItemCount,
		"path", result.Path)

	return nil
}
