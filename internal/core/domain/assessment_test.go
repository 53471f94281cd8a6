package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewAssessment(t *testing.T) {
	ioc := IOC{Value: "evil.example", Type: Domain}
	results := []ProviderResult{
		{Provider: ProviderWhois, Status: StatusOK, Signal: WhoisSignal{Registrar: "NameCheap, Inc.", DomainAgeDays: 3}},
		{Provider: ProviderVirusTotal, Status: StatusTimeout},
		{Provider: ProviderSecurityTrails, Status: StatusOK, Signal: SecurityTrailsSignal{ResolutionCount: 2, RecentCount: 2}},
	}

	a := NewAssessment("assessment-1", ioc, results, DefaultScoringConfig(), DefaultTierBoundaries())

	if a.ID != "assessment-1" {
		t.Errorf("ID = %q, want %q", a.ID, "assessment-1")
	}
	if len(a.Results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(a.Results))
	}
	for i := 1; i < len(a.Results); i++ {
		if a.Results[i-1].Provider > a.Results[i].Provider {
			t.Errorf("Results not sorted by provider: %s before %s", a.Results[i-1].Provider, a.Results[i].Provider)
		}
	}
	if a.Tier != Classify(a.Score, DefaultTierBoundaries()) {
		t.Errorf("Tier %s disagrees with score %d", a.Tier, a.Score)
	}
	if a.CreatedAt.Location() != time.UTC {
		t.Errorf("Expected UTC timestamp, got %v", a.CreatedAt.Location())
	}
	if time.Since(a.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt too far in the past: %v", a.CreatedAt)
	}
}

func TestProviderResultOK(t *testing.T) {
	tests := []struct {
		name     string
		result   ProviderResult
		expected bool
	}{
		{"Ok with signal", ProviderResult{Status: StatusOK, Signal: VirusTotalSignal{}}, true},
		{"Ok without signal", ProviderResult{Status: StatusOK}, false},
		{"Timeout", ProviderResult{Status: StatusTimeout}, false},
		{"Error with stale signal", ProviderResult{Status: StatusError, Signal: VirusTotalSignal{Malicious: 9}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.OK(); got != tt.expected {
				t.Errorf("OK() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDecodeSignal(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderName
		signal   Signal
	}{
		{"VirusTotal", ProviderVirusTotal, VirusTotalSignal{Malicious: 2, Harmless: 70, Undetected: 17}},
		{"SecurityTrails", ProviderSecurityTrails, SecurityTrailsSignal{ResolutionCount: 6, RecentCount: 1}},
		{"Whois", ProviderWhois, WhoisSignal{Registrar: "MarkMonitor Inc.", DomainAgeDays: 9000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.signal)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			decoded, err := DecodeSignal(tt.provider, data)
			if err != nil {
				t.Fatalf("DecodeSignal failed: %v", err)
			}
			if decoded != tt.signal {
				t.Errorf("DecodeSignal = %+v, want %+v", decoded, tt.signal)
			}
			if decoded.SubScore() != tt.signal.SubScore() {
				t.Errorf("Decoded sub-score %f, want %f", decoded.SubScore(), tt.signal.SubScore())
			}
		})
	}

	if _, err := DecodeSignal(ProviderName("shodan"), []byte(`{}`)); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
