package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ProviderName identifies one of the configured intelligence sources.
type ProviderName string

const (
	ProviderVirusTotal     ProviderName = "virustotal"
	ProviderSecurityTrails ProviderName = "securitytrails"
	ProviderWhois          ProviderName = "whois"
)

// ProviderStatus records how a provider call ended.
type ProviderStatus string

const (
	StatusOK          ProviderStatus = "ok"
	StatusTimeout     ProviderStatus = "timeout"
	StatusError       ProviderStatus = "error"
	StatusUnavailable ProviderStatus = "unavailable"
)

// Signal is the provider-specific observation attached to an ok result.
// Each concrete signal carries its own sub-score rule, so combining
// results never branches on provider identity.
type Signal interface {
	// SubScore maps the observation onto [0,1], monotonic in adverse evidence.
	SubScore() float64
}

// VirusTotalSignal holds the engine verdict counts from last_analysis_stats.
type VirusTotalSignal struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

// TotalEngines is the number of engines that produced any verdict.
func (s VirusTotalSignal) TotalEngines() int {
	return s.Malicious + s.Suspicious + s.Harmless + s.Undetected
}

// SecurityTrailsSignal summarizes the DNS resolution history of a domain.
// RecentCount is how many resolutions first appeared inside the churn window.
type SecurityTrailsSignal struct {
	ResolutionCount int `json:"resolution_count"`
	RecentCount     int `json:"recent_count"`
}

// WhoisSignal carries registration metadata. DomainAgeDays is the age at
// observation time; negative means the creation date is unknown.
type WhoisSignal struct {
	Registrar     string `json:"registrar,omitempty"`
	DomainAgeDays int    `json:"domain_age_days"`
}

// ProviderResult is the auditable outcome of one provider call. Non-ok
// results carry no signal and contribute nothing to the score.
type ProviderResult struct {
	Provider  ProviderName   `json:"provider"`
	Status    ProviderStatus `json:"status"`
	Signal    Signal         `json:"signal,omitempty"`
	LatencyMS int64          `json:"latency_ms"`
}

// OK reports whether the result carries usable signal.
func (r ProviderResult) OK() bool {
	return r.Status == StatusOK && r.Signal != nil
}

// Assessment is one immutable snapshot of an IOC: every provider result,
// the combined score, and the tier derived from it.
type Assessment struct {
	ID        string           `json:"id"`
	IOC       IOC              `json:"ioc"`
	Results   []ProviderResult `json:"results"`
	Score     int              `json:"score"`
	Tier      RiskTier         `json:"risk_level"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewAssessment derives score and tier together so they can never disagree.
// Results are kept in provider-name order for deterministic output.
func NewAssessment(id string, ioc IOC, results []ProviderResult, cfg ScoringConfig, boundaries []TierBoundary) Assessment {
	SortResults(results)
	score := Score(results, cfg)

	return Assessment{
		ID:        id,
		IOC:       ioc,
		Results:   results,
		Score:     score,
		Tier:      Classify(score, boundaries),
		CreatedAt: time.Now().UTC(),
	}
}

// SortResults orders provider results by provider name in place.
func SortResults(results []ProviderResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Provider < results[j].Provider
	})
}

// DecodeSignal rebuilds the concrete signal type for a provider from its
// stored JSON form.
func DecodeSignal(provider ProviderName, data []byte) (Signal, error) {
	switch provider {
	case ProviderVirusTotal:
		var s VirusTotalSignal
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode %s signal: %w", provider, err)
		}
		return s, nil
	case ProviderSecurityTrails:
		var s SecurityTrailsSignal
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode %s signal: %w", provider, err)
		}
		return s, nil
	case ProviderWhois:
		var s WhoisSignal
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode %s signal: %w", provider, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
