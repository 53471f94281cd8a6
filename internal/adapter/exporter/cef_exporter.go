package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

// feedLimit caps one export window (keeps feed generation bounded)
const feedLimit = 10000

// CEFExporter exports assessments in Common Event Format for SIEM ingestion
type CEFExporter struct {
	repo ports.AssessmentRepository
}

func NewCEFExporter(repo ports.AssessmentRepository) *CEFExporter {
	return &CEFExporter{repo: repo}
}

// Export generates a CEF-formatted assessment feed
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(ctx context.Context, since time.Time) (string, error) {
	// Default to last 24 hours if no time specified
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	assessments, err := e.repo.ListSince(ctx, since, feedLimit)
	if err != nil {
		return "", fmt.Errorf("failed to fetch assessments: %w", err)
	}

	var output strings.Builder

	// One line per IOC, carrying its newest assessment in the window
	for _, a := range latestPerIOC(assessments) {
		output.WriteString(e.formatCEF(a))
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (e *CEFExporter) formatCEF(a domain.Assessment) string {
	// CEF Header
	// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension

	vendor := "Spyglass"
	product := "ThreatIntel"
	version := "1.0"
	signatureID := string(a.IOC.Type)
	name := fmt.Sprintf("%s IOC Assessed", strings.ToUpper(string(a.IOC.Type)))
	severity := cefSeverity(a.Score)

	// CEF Extensions (key=value pairs)
	extensions := []string{
		fmt.Sprintf("src=%s", escapeField(a.IOC.Value)),
		"cn1Label=RiskScore",
		fmt.Sprintf("cn1=%d", a.Score),
		"cs1Label=RiskLevel",
		fmt.Sprintf("cs1=%s", a.Tier),
		"cs2Label=Providers",
		fmt.Sprintf("cs2=%s", escapeField(strings.Join(okProviders(a), ","))),
		fmt.Sprintf("rt=%d", a.CreatedAt.Unix()*1000), // milliseconds
	}

	extensionStr := strings.Join(extensions, " ")

	// Build CEF line
	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, signatureID, name, severity, extensionStr)
}

// cefSeverity maps a risk score (0-100) onto the CEF severity scale (0-10)
func cefSeverity(score int) int {
	return score / 10
}

func escapeField(s string) string {
	// Escape special characters in CEF fields
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// latestPerIOC keeps only the newest assessment for each IOC. ListSince
// returns newest first, so the first occurrence of an identity wins.
func latestPerIOC(assessments []domain.Assessment) []domain.Assessment {
	seen := make(map[string]bool, len(assessments))
	latest := make([]domain.Assessment, 0, len(assessments))
	for _, a := range assessments {
		key := a.IOC.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		latest = append(latest, a)
	}
	return latest
}

// okProviders lists the providers that contributed usable signal
func okProviders(a domain.Assessment) []string {
	names := make([]string, 0, len(a.Results))
	for _, r := range a.Results {
		if r.Status == domain.StatusOK {
			names = append(names, string(r.Provider))
		}
	}
	return names
}
