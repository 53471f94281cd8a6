package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskTier is an ordered classification of a risk score.
type RiskTier int

const (
	TierLow RiskTier = iota
	TierMedium
	TierHigh
	TierCritical
)

func (t RiskTier) String() string {
	switch t {
	case TierCritical:
		return "critical"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	default:
		return "low"
	}
}

func (t RiskTier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *RiskTier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	tier, err := ParseRiskTier(name)
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseRiskTier resolves a tier name back to its ordered value.
func ParseRiskTier(name string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	case "critical":
		return TierCritical, nil
	default:
		return TierLow, fmt.Errorf("unknown risk tier %q", name)
	}
}

// TierBoundary is one row of the classification table: the lowest score
// that still belongs to Tier.
type TierBoundary struct {
	Min  int
	Tier RiskTier
}

// DefaultTierBoundaries returns the classification table in ascending
// order. A score equal to a boundary belongs to the higher tier.
func DefaultTierBoundaries() []TierBoundary {
	return []TierBoundary{
		{Min: 0, Tier: TierLow},
		{Min: 25, Tier: TierMedium},
		{Min: 50, Tier: TierHigh},
		{Min: 70, Tier: TierCritical},
	}
}

// Classify resolves a score to its tier. Total over all ints: anything
// below the first boundary is low, anything above the last is critical.
func Classify(score int, boundaries []TierBoundary) RiskTier {
	tier := TierLow
	for _, boundary := range boundaries {
		if score >= boundary.Min {
			tier = boundary.Tier
		}
	}
	return tier
}
