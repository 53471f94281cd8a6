package ports

import "github.com/hive-corporation/spyglass/internal/core/domain"

// Notifier defines the interface for pushing alerts to external systems
type Notifier interface {
	// NotifyHighRiskAssessment sends an alert for an assessment that landed
	// at or above the high tier
	NotifyHighRiskAssessment(assessment domain.Assessment) error

	// NotifyBurnedInfrastructure sends an alert when an IOC's history first
	// qualifies as burned infrastructure
	NotifyBurnedInfrastructure(summary domain.TemporalSummary) error
}
