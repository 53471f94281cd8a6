package domain

import "time"

// ActivityPhase describes what an IOC's assessment history says about the
// infrastructure behind it.
type ActivityPhase string

const (
	PhaseDormant   ActivityPhase = "dormant"
	PhaseEmerging  ActivityPhase = "emerging"
	PhaseActive    ActivityPhase = "active"
	PhaseDeclining ActivityPhase = "declining"
	PhaseBurned    ActivityPhase = "burned"
)

// TemporalConfig holds the thresholds for phase derivation and burned
// infrastructure detection.
type TemporalConfig struct {
	// RecentGap is the longest distance between the two newest assessments
	// that still counts as continuous observation.
	RecentGap time.Duration

	// ElevatedScore is the score at or above which history counts as elevated.
	ElevatedScore int

	// DropDelta is the score drop treated as evidence of decline.
	DropDelta int

	// Burned detection: the newest BurnedMinCount assessments must all sit
	// at or above BurnedTier and span at least BurnedMinWindow.
	BurnedMinCount  int
	BurnedMinWindow time.Duration
	BurnedTier      RiskTier
}

func DefaultTemporalConfig() TemporalConfig {
	return TemporalConfig{
		RecentGap:       7 * 24 * time.Hour,
		ElevatedScore:   50,
		DropDelta:       20,
		BurnedMinCount:  3,
		BurnedMinWindow: 7 * 24 * time.Hour,
		BurnedTier:      TierHigh,
	}
}

// TemporalSummary is the derived temporal view of one IOC. It is computed
// from history on every read and never persisted.
type TemporalSummary struct {
	IOC             IOC           `json:"ioc"`
	FirstSeen       time.Time     `json:"first_seen"`
	LastUpdated     time.Time     `json:"last_updated"`
	AssessmentCount int           `json:"assessment_count"`
	LatestScore     int           `json:"latest_score"`
	LatestTier      RiskTier      `json:"latest_risk_level"`
	ActivityPhase   ActivityPhase `json:"activity_phase"`
	BurnedInfra     bool          `json:"burned_infra"`
}

// Summarize derives the temporal view from an assessment history ordered
// by ascending CreatedAt. It never mutates history; calling it twice on
// the same input yields the same summary.
func Summarize(history []Assessment, cfg TemporalConfig) (TemporalSummary, error) {
	if len(history) == 0 {
		return TemporalSummary{}, ErrEmptyHistory
	}

	first := history[0]
	last := history[len(history)-1]
	burned := isBurned(history, cfg)

	return TemporalSummary{
		IOC:             last.IOC,
		FirstSeen:       first.CreatedAt,
		LastUpdated:     last.CreatedAt,
		AssessmentCount: len(history),
		LatestScore:     last.Score,
		LatestTier:      last.Tier,
		ActivityPhase:   derivePhase(history, burned, cfg),
		BurnedInfra:     burned,
	}, nil
}

// isBurned checks for sustained high-tier evidence: one spike is never
// enough, the window requirement forces persistence over time.
func isBurned(history []Assessment, cfg TemporalConfig) bool {
	if cfg.BurnedMinCount <= 0 || len(history) < cfg.BurnedMinCount {
		return false
	}

	recent := history[len(history)-cfg.BurnedMinCount:]
	for _, a := range recent {
		if a.Tier < cfg.BurnedTier {
			return false
		}
	}

	span := recent[len(recent)-1].CreatedAt.Sub(recent[0].CreatedAt)
	return span >= cfg.BurnedMinWindow
}

func derivePhase(history []Assessment, burned bool, cfg TemporalConfig) ActivityPhase {
	if burned {
		return PhaseBurned
	}

	last := history[len(history)-1]
	if len(history) == 1 {
		if last.Score >= cfg.ElevatedScore {
			return PhaseEmerging
		}
		return PhaseDormant
	}

	prev := history[len(history)-2]
	gap := last.CreatedAt.Sub(prev.CreatedAt)

	if gap > cfg.RecentGap && prev.Score >= cfg.ElevatedScore && prev.Score-last.Score >= cfg.DropDelta {
		return PhaseDeclining
	}
	if gap <= cfg.RecentGap && last.Score >= cfg.ElevatedScore && prev.Score >= cfg.ElevatedScore {
		return PhaseActive
	}
	return PhaseDormant
}
