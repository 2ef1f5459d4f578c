package digest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
)

// fakeDigestRepo returns a canned compilation result and records the output
// location it was handed.
type fakeDigestRepo struct {
	digest      *database.Digest
	items       []database.Item
	gotLocation string
}

func (f *fakeDigestRepo) CompileWindow(windowStart, windowEnd time.Time, outputLocation string) (*database.Digest, []database.Item, error) {
	f.gotLocation = outputLocation
	if f.digest != nil {
		d := *f.digest
		d.OutputLocation = outputLocation
		return &d, f.items, nil
	}
	return nil, nil, nil
}

func (f *fakeDigestRepo) GetDigest(id int64) (*database.Digest, error) { return f.digest, nil }
func (f *fakeDigestRepo) GetLatestDigest() (*database.Digest, error)   { return f.digest, nil }

func TestCompilerRun(t *testing.T) {
	tempDir := t.TempDir()
	now := time.Now().UTC()

	repo := &fakeDigestRepo{
		digest: &database.Digest{
			ID:          1,
			WindowStart: now.AddDate(0, 0, -7),
			WindowEnd:   now,
			ItemCount:   1,
			TierCounts:  curation.TierCounts{curation.TierS: 1},
			CreatedAt:   now,
		},
		items: []database.Item{
			{ID: 10, Title: "Item", Address: "https://example.com/item", Rating: curation.TierS},
		},
	}

	compiler := NewCompiler(repo, NewGenerator(), NewWriter(tempDir))

	result, err := compiler.Run(context.Background(), now.AddDate(0, 0, -7), now)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
	if result.Path != repo.gotLocation {
		t.Errorf("Expected rendered path '%s' to match reserved location '%s'", result.Path, repo.gotLocation)
	}

	// The rendered document landed on disk.
	data, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("Expected digest file at %s: %v", result.Path, err)
	}
	if len(data) == 0 {
		t.Error("Expected non-empty digest document")
	}
}

func TestCompilerRunEmptyWindow(t *testing.T) {
	compiler := NewCompiler(&fakeDigestRepo{}, NewGenerator(), NewWriter(t.TempDir()))

	now := time.Now().UTC()
	result, err := compiler.Run(context.Background(), now.AddDate(0, 0, -7), now)
	if err != nil {
		t.Fatalf("Expected no error for empty window, got: %v", err)
	}
	if result != nil {
		t.Error("Expected nil result when nothing is eligible")
	}
}

func TestCompilerRunInvalidWindow(t *testing.T) {
	compiler := NewCompiler(&fakeDigestRepo{}, NewGenerator(), NewWriter(t.TempDir()))

	now := time.Now().UTC()
	_, err := compiler.Run(context.Background(), now, now.AddDate(0, 0, -7))
	if err == nil {
		t.Error("Expected error for inverted window, got none")
	}
}

func TestCompilerRunCancelledContext(t *testing.T) {
	compiler := NewCompiler(&fakeDigestRepo{}, NewGenerator(), NewWriter(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now().UTC()
	_, err := compiler.Run(ctx, now.AddDate(0, 0, -7), now)
	if err == nil {
		t.Error("Expected error for cancelled context, got none")
	}
}
