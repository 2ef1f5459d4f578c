package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/curatehq/curator/app/curation"
	"github.com/curatehq/curator/app/database"
)

// Generator renders a compiled digest as a markdown document. Items arrive
// in compilation order (best tier first) and are grouped under per-tier
// headings.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(d database.Digest, items []database.Item) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Curated Digest %s\n\n", d.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Window: %s — %s\n\n",
		d.WindowStart.Format("2006-01-02"), d.WindowEnd.Format("2006-01-02"))
	fmt.Fprintf(&b, "%d item(s)", d.ItemCount)
	for _, tier := range curation.Tiers {
		if count := d.TierCounts[tier]; count > 0 {
			fmt.Fprintf(&b, ", %d %s-tier", count, tier)
		}
	}
	b.WriteString("\n")

	var currentTier curation.Tier
	for _, item := range items {
		if item.Rating != currentTier {
			currentTier = item.Rating
			fmt.Fprintf(&b, "\n## %s Tier\n\n", currentTier)
		}
		g.writeItem(&b, item)
	}

	return b.String()
}

func (g *Generator) writeItem(b *strings.Builder, item database.Item) {
	fmt.Fprintf(b, "### [%s](%s)\n\n", item.Title, item.Address)

	if item.PublishedDate != nil {
		fmt.Fprintf(b, "Published: %s", item.PublishedDate.Format("2006-01-02"))
		if item.DurationMinutes > 0 {
			fmt.Fprintf(b, " · %s", formatDuration(item.DurationMinutes))
		}
		b.WriteString("\n\n")
	} else if item.DurationMinutes > 0 {
		fmt.Fprintf(b, "%s\n\n", formatDuration(item.DurationMinutes))
	}

	if item.RatingReasoning != "" {
		fmt.Fprintf(b, "%s\n\n", item.RatingReasoning)
	}
}

func formatDuration(minutes int) string {
	d := time.Duration(minutes) * time.Minute
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
