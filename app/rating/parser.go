package rating

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/curatehq/curator/app/curation"
)

const maxReasoningChars = 500

var (
	tierPattern        = regexp.MustCompile(`([SABCD])\s+Tier:`)
	tierAltPattern     = regexp.MustCompile(`RATING:\s*([SABCD])`)
	explanationPattern = regexp.MustCompile(`(?s)Explanation:\s*(.*?)(?:CONTENT SCORE:|$)`)
	tierLabelPattern   = regexp.MustCompile(`[SABCD] Tier:\s*\(([^)]+)\)`)
	bulletPrefix       = regexp.MustCompile(`(?m)^- `)
)

// ParseOracleOutput extracts the tier and reasoning from the oracle's
// free-text verdict. The expected shape is
//
//	RATING:
//
//	B Tier: (Consume Original When Time Allows)
//
//	Explanation:
//	- ...
//	- ...
func ParseOracleOutput(output string) (*Result, error) {
	match := tierPattern.FindStringSubmatch(output)
	if match == nil {
		match = tierAltPattern.FindStringSubmatch(output)
	}
	if match == nil {
		preview := output
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("could not parse tier from oracle output: %s", preview)
	}

	tier, err := curation.ParseTier(match[1])
	if err != nil {
		return nil, err
	}

	reasoning := extractReasoning(output)
	if len(reasoning) > maxReasoningChars {
		reasoning = reasoning[:maxReasoningChars]
	}

	return &Result{Tier: tier, Reasoning: reasoning}, nil
}

func extractReasoning(output string) string {
	if match := explanationPattern.FindStringSubmatch(output); match != nil {
		reasoning := strings.TrimSpace(match[1])
		reasoning = bulletPrefix.ReplaceAllString(reasoning, "")
		reasoning = strings.ReplaceAll(reasoning, "\n- ", " ")
		if reasoning != "" {
			return reasoning
		}
	}

	// Fallback: the tier label description, e.g. "(Consume Original When
	// Time Allows)".
	if match := tierLabelPattern.FindStringSubmatch(output); match != nil {
		return match[1]
	}

	return "No explanation provided"
}
