package curation

import "fmt"

// Tier is one of the five ordered quality grades assigned by the rating
// oracle. TierS is the highest grade, TierD the lowest.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Tiers lists all valid tiers in rank order, best first.
var Tiers = []Tier{TierS, TierA, TierB, TierC, TierD}

// ParseTier validates a raw tier value coming from an external caller.
func ParseTier(value string) (Tier, error) {
	tier := Tier(value)
	if !tier.Valid() {
		return "", fmt.Errorf("invalid tier %q", value)
	}
	return tier, nil
}

func (t Tier) Valid() bool {
	switch t {
	case TierS, TierA, TierB, TierC, TierD:
		return true
	}
	return false
}

// Rank returns the total order over tiers used for digest selection,
// 0 for TierS through 4 for TierD. Invalid tiers rank last.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if t == tier {
			return i
		}
	}
	return len(Tiers)
}

// TierCounts holds a per-tier item breakdown for a digest.
type TierCounts map[Tier]int

// Total sums the counts across all tiers.
func (c TierCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
