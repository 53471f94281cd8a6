package exporter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hive-corporation/spyglass/internal/adapter/repository"
	"github.com/hive-corporation/spyglass/internal/core/domain"
)

func seedAssessment(t *testing.T, store *repository.MemoryHistoryStore, ioc domain.IOC, score int, created time.Time) domain.Assessment {
	t.Helper()
	a := domain.Assessment{
		ID:    "a-" + ioc.Value + "-" + created.Format("20060102150405"),
		IOC:   ioc,
		Score: score,
		Tier:  domain.Classify(score, domain.DefaultTierBoundaries()),
		Results: []domain.ProviderResult{
			{Provider: domain.ProviderVirusTotal, Status: domain.StatusOK, Signal: domain.VirusTotalSignal{Malicious: score / 2, Harmless: 80}, LatencyMS: 120},
			{Provider: domain.ProviderSecurityTrails, Status: domain.StatusTimeout, LatencyMS: 8000},
			{Provider: domain.ProviderWhois, Status: domain.StatusOK, Signal: domain.WhoisSignal{Registrar: "Evil|Registrar=Ltd", DomainAgeDays: 12}, LatencyMS: 340},
		},
		CreatedAt: created,
	}
	if err := store.Append(context.Background(), a); err != nil {
		t.Fatalf("failed to seed assessment: %v", err)
	}
	return a
}

func TestCEFExportLatestPerIOC(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	now := time.Now().UTC()

	evil := domain.IOC{Value: "evil.example", Type: domain.Domain}
	seedAssessment(t, store, evil, 30, now.Add(-2*time.Hour))
	seedAssessment(t, store, evil, 85, now.Add(-1*time.Hour))
	seedAssessment(t, store, domain.IOC{Value: "198.51.100.7", Type: domain.IPAddress}, 10, now.Add(-30*time.Minute))

	exporter := NewCEFExporter(store)
	feed, err := exporter.Export(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(feed), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected one CEF line per IOC, got %d lines:\n%s", len(lines), feed)
	}

	var evilLine string
	for _, line := range lines {
		if !strings.HasPrefix(line, "CEF:0|Spyglass|ThreatIntel|1.0|") {
			t.Errorf("Malformed CEF header: %s", line)
		}
		if strings.Contains(line, "evil.example") {
			evilLine = line
		}
	}

	// The newer assessment (score 85, critical, severity 8) must win.
	if !strings.Contains(evilLine, "cn1=85") {
		t.Errorf("Expected newest score 85 in line: %s", evilLine)
	}
	if !strings.Contains(evilLine, "cs1=critical") {
		t.Errorf("Expected critical risk level in line: %s", evilLine)
	}
	if !strings.Contains(evilLine, "|domain|DOMAIN IOC Assessed|8|") {
		t.Errorf("Expected severity 8 for score 85 in line: %s", evilLine)
	}
	// Only ok providers are listed as evidence sources.
	if !strings.Contains(evilLine, "cs2=virustotal,whois") {
		t.Errorf("Expected ok-provider list in line: %s", evilLine)
	}
}

func TestCEFEscaping(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `plain`},
		{`a|b`, `a\|b`},
		{`a=b`, `a\=b`},
		{`a\b`, `a\\b`},
		{"a\nb", `a\nb`},
	}

	for _, tt := range tests {
		if got := escapeField(tt.in); got != tt.want {
			t.Errorf("escapeField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCEFSeverityMonotonic(t *testing.T) {
	prev := -1
	for score := 0; score <= 100; score += 5 {
		severity := cefSeverity(score)
		if severity < 0 || severity > 10 {
			t.Errorf("cefSeverity(%d) = %d, outside [0,10]", score, severity)
		}
		if severity < prev {
			t.Errorf("cefSeverity not monotonic at score %d", score)
		}
		prev = severity
	}
}

func TestSTIXExportBundle(t *testing.T) {
	store := repository.NewMemoryHistoryStore()
	now := time.Now().UTC()

	seedAssessment(t, store, domain.IOC{Value: "evil.example", Type: domain.Domain}, 85, now.Add(-1*time.Hour))
	seedAssessment(t, store, domain.IOC{Value: "198.51.100.7", Type: domain.IPAddress}, 40, now.Add(-30*time.Minute))
	seedAssessment(t, store, domain.IOC{Value: "2001:db8::1", Type: domain.IPAddress}, 5, now.Add(-10*time.Minute))

	exporter := NewSTIXExporter(store)
	feed, err := exporter.Export(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var bundle STIXBundle
	if err := json.Unmarshal([]byte(feed), &bundle); err != nil {
		t.Fatalf("STIX feed is not valid JSON: %v", err)
	}

	if bundle.Type != "bundle" || bundle.SpecVersion != "2.1" {
		t.Errorf("Unexpected bundle envelope: type=%s spec=%s", bundle.Type, bundle.SpecVersion)
	}
	if !strings.HasPrefix(bundle.ID, "bundle--") {
		t.Errorf("Bundle ID %q does not carry the bundle-- prefix", bundle.ID)
	}
	if len(bundle.Objects) != 3 {
		t.Fatalf("Expected 3 indicators, got %d", len(bundle.Objects))
	}

	patterns := make(map[string]STIXObject)
	for _, obj := range bundle.Objects {
		if obj.Type != "indicator" || obj.PatternType != "stix" {
			t.Errorf("Unexpected object shape: %+v", obj)
		}
		patterns[obj.Pattern] = obj
	}

	domainObj, ok := patterns["[domain-name:value = 'evil.example']"]
	if !ok {
		t.Fatal("Missing domain-name pattern for evil.example")
	}
	if domainObj.Confidence != 85 {
		t.Errorf("Confidence = %d, want the assessment score 85", domainObj.Confidence)
	}
	if len(domainObj.IndicatorTypes) == 0 || domainObj.IndicatorTypes[0] != "malicious-activity" {
		t.Errorf("Critical-tier indicator types = %v, want malicious-activity", domainObj.IndicatorTypes)
	}
	// ok providers surface as external references
	if len(domainObj.ExternalReferences) != 2 {
		t.Errorf("Expected 2 external references, got %v", domainObj.ExternalReferences)
	}

	if v4, ok := patterns["[ipv4-addr:value = '198.51.100.7']"]; !ok {
		t.Error("Missing ipv4-addr pattern")
	} else if v4.IndicatorTypes[0] != "anomalous-activity" {
		t.Errorf("Medium-tier indicator types = %v, want anomalous-activity", v4.IndicatorTypes)
	}

	if v6, ok := patterns["[ipv6-addr:value = '2001:db8::1']"]; !ok {
		t.Error("Missing ipv6-addr pattern")
	} else if v6.IndicatorTypes[0] != "unknown" {
		t.Errorf("Low-tier indicator types = %v, want unknown", v6.IndicatorTypes)
	}
}
