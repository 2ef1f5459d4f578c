package rating

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
)

// Result is one rating oracle verdict.
type Result struct {
	Tier      curation.Tier
	Reasoning string
}

// Oracle rates a content item into a quality tier. Implementations call out
// to an external rating service; no store transaction is open while they
// run.
type Oracle interface {
	Rate(ctx context.Context, item database.Item) (*Result, error)
}

var _ Oracle = (*CLIOracle)(nil)

// CLIOracle shells out to an external rating command (a fabric-style CLI
// reading the content on stdin and writing a tier verdict on stdout).
type CLIOracle struct {
	command string
	pattern string
	model   string
}

func NewCLIOracle(command, pattern, model string) *CLIOracle {
	return &CLIOracle{
		command: command,
		pattern: pattern,
		model:   model,
	}
}

func (o *CLIOracle) Rate(ctx context.Context, item database.Item) (*Result, error) {
	args := []string{"--pattern", o.pattern}
	if o.model != "" {
		args = append(args, "--model", o.model)
	}

	cmd := exec.CommandContext(ctx, o.command, args...)
	cmd.Stdin = strings.NewReader(buildOracleInput(item))

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("rating command failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("failed to run rating command: %w", err)
	}

	return ParseOracleOutput(string(output))
}

const maxDescriptionChars = 500

// buildOracleInput assembles the text the oracle inspects: title, a
// truncated description, and the transcript when present.
func buildOracleInput(item database.Item) string {
	parts := []string{"Title: " + item.Title}

	if item.Description != "" {
		description := item.Description
		if len(description) > maxDescriptionChars {
			description = description[:maxDescriptionChars]
		}
		parts = append(parts, "Description: "+description)
	}

	if item.Transcript != "" {
		parts = append(parts, "Transcript: "+item.Transcript)
	}

	return strings.Join(parts, "\n\n")
}
