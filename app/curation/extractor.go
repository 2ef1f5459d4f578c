package curation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
)

// TranscriptExtractor pulls readable article text out of raw HTML for
// transcript backfill on article items.
type TranscriptExtractor struct{}

func NewTranscriptExtractor() *TranscriptExtractor {
	return &TranscriptExtractor{}
}

func (e *TranscriptExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract article text: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no text extracted from HTML data")
	}

	slog.Debug("Article text extracted",
		"title", article.Title,
		"text_length", len(text))

	return text, nil
}
