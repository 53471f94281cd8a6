package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

// STIXExporter exports assessments in STIX 2.1 format for SIEM ingestion
type STIXExporter struct {
	repo ports.AssessmentRepository
}

func NewSTIXExporter(repo ports.AssessmentRepository) *STIXExporter {
	return &STIXExporter{repo: repo}
}

// Export generates a STIX 2.1 formatted assessment feed
func (e *STIXExporter) Export(ctx context.Context, since time.Time) (string, error) {
	// Default to last 24 hours if no time specified
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	assessments, err := e.repo.ListSince(ctx, since, feedLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch assessments: %w", err)
	}

	bundle := STIXBundle{
		Type:        "bundle",
		ID:          fmt.Sprintf("bundle--%s", uuid.New().String()),
		SpecVersion: "2.1",
		Objects:     []STIXObject{},
	}

	// One indicator per IOC, built from its newest assessment in the window
	for _, a := range latestPerIOC(assessments) {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(a))
	}

	// Marshal to JSON
	jsonData, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}

	return string(jsonData), nil
}

func (e *STIXExporter) convertToSTIX(a domain.Assessment) STIXObject {
	created := a.CreatedAt.UTC().Format(time.RFC3339)

	// Build STIX pattern based on IOC type
	pattern := e.buildPattern(a.IOC)

	// External references: one per provider that returned usable signal
	externalRefs := []ExternalReference{}
	for _, r := range a.Results {
		if r.Status != domain.StatusOK {
			continue
		}
		externalRefs = append(externalRefs, ExternalReference{
			SourceName: string(r.Provider),
			URL:        providerSites[r.Provider],
		})
	}

	return STIXObject{
		Type:               "indicator",
		SpecVersion:        "2.1",
		ID:                 fmt.Sprintf("indicator--%s", uuid.New().String()),
		Created:            created,
		Modified:           created,
		Name:               fmt.Sprintf("%s Indicator", strings.ToUpper(string(a.IOC.Type))),
		Pattern:            pattern,
		PatternType:        "stix",
		ValidFrom:          created,
		IndicatorTypes:     indicatorTypes(a.Tier),
		Confidence:         a.Score,
		Labels:             []string{"risk:" + a.Tier.String()},
		ExternalReferences: externalRefs,
	}
}

func (e *STIXExporter) buildPattern(ioc domain.IOC) string {
	// Build STIX 2.1 pattern based on IOC type
	switch ioc.Type {
	case domain.IPAddress:
		if strings.Contains(ioc.Value, ":") {
			return fmt.Sprintf("[ipv6-addr:value = '%s']", ioc.Value)
		}
		return fmt.Sprintf("[ipv4-addr:value = '%s']", ioc.Value)
	case domain.Domain:
		return fmt.Sprintf("[domain-name:value = '%s']", ioc.Value)
	default:
		return fmt.Sprintf("[x-custom:value = '%s']", ioc.Value)
	}
}

// indicatorTypes maps a risk tier onto the STIX indicator-type vocabulary
func indicatorTypes(tier domain.RiskTier) []string {
	switch {
	case tier >= domain.TierHigh:
		return []string{"malicious-activity"}
	case tier == domain.TierMedium:
		return []string{"anomalous-activity"}
	default:
		return []string{"unknown"}
	}
}

// providerSites maps providers to their public lookup portals
var providerSites = map[domain.ProviderName]string{
	domain.ProviderVirusTotal:     "https://www.virustotal.com",
	domain.ProviderSecurityTrails: "https://securitytrails.com",
	domain.ProviderWhois:          "https://whois.whoisxmlapi.com",
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	SpecVersion string       `json:"spec_version"`
	Objects     []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Confidence         int                 `json:"confidence"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

type ExternalReference struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url,omitempty"`
}
