package domain

import "math"

// ScoringConfig fixes the per-provider weights used to combine sub-scores
// into one risk score. Weights are integer percentages summing to 100.
type ScoringConfig struct {
	Weights map[ProviderName]int
}

// DefaultScoringConfig weights detection evidence heaviest, infrastructure
// churn next, registration metadata least.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: map[ProviderName]int{
			ProviderVirusTotal:     50,
			ProviderSecurityTrails: 30,
			ProviderWhois:          20,
		},
	}
}

// Sub-score shape constants. Every rule follows the same pattern: an
// observed adverse signal lands at a floor, stronger evidence ramps
// linearly toward the provider's full weight.
const (
	// detectionFloor is where any engine detection starts; the ramp tops
	// out once detectionSaturation of all engines agree.
	detectionFloor      = 0.35
	detectionSaturation = 0.10

	// resolutionFloor is where any observed resolution history starts;
	// churn inside the lookback window drives the ramp.
	resolutionFloor = 0.40

	// registrarFloor is where a known registration starts; domains younger
	// than youngDomainMaxDays ramp toward the cap as age approaches zero.
	registrarFloor     = 0.40
	youngDomainMaxDays = 365
)

// SubScore for VirusTotal: zero without any malicious or suspicious
// verdict, then a ramp on the share of engines flagging the indicator.
// Suspicious verdicts count half.
func (s VirusTotalSignal) SubScore() float64 {
	total := s.TotalEngines()
	flagged := float64(s.Malicious) + 0.5*float64(s.Suspicious)
	if total == 0 || flagged == 0 {
		return 0
	}

	ratio := flagged / float64(total)
	return detectionFloor + (1-detectionFloor)*math.Min(1, ratio/detectionSaturation)
}

// SubScore for SecurityTrails: zero without resolution history, then a
// ramp on the fraction of resolutions that appeared recently. Stable
// long-lived infrastructure stays at the floor.
func (s SecurityTrailsSignal) SubScore() float64 {
	if s.ResolutionCount <= 0 {
		return 0
	}

	churn := float64(s.RecentCount) / float64(s.ResolutionCount)
	return resolutionFloor + (1-resolutionFloor)*clamp01(churn)
}

// SubScore for WHOIS: zero without any registration data, then a ramp on
// registration recency. Unknown age contributes the floor only.
func (s WhoisSignal) SubScore() float64 {
	if s.Registrar == "" && s.DomainAgeDays < 0 {
		return 0
	}

	sub := registrarFloor
	if s.DomainAgeDays >= 0 && s.DomainAgeDays < youngDomainMaxDays {
		recency := 1 - float64(s.DomainAgeDays)/float64(youngDomainMaxDays)
		sub += (1 - registrarFloor) * recency
	}
	return sub
}

// Score combines provider results into a single risk score in [0,100].
// Pure and total: non-ok results contribute zero, providers without a
// configured weight carry none, and the rounded weighted sum is clamped.
func Score(results []ProviderResult, cfg ScoringConfig) int {
	var total float64

	for _, result := range results {
		if !result.OK() {
			continue
		}
		weight, ok := cfg.Weights[result.Provider]
		if !ok {
			continue
		}
		total += float64(weight) * clamp01(result.Signal.SubScore())
	}

	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
