package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

func TestSecurityTrailsLookup(t *testing.T) {
	recentDate := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history/evil.example/dns/a" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("APIKEY"); got != "st-key" {
			t.Errorf("APIKEY header = %q, want %q", got, "st-key")
		}
		fmt.Fprintf(w, `{"records":[
			{"first_seen":"2019-03-04","last_seen":"2020-01-01"},
			{"first_seen":"2021-07-15","last_seen":"2023-02-02"},
			{"first_seen":%q,"last_seen":%q}
		]}`, recentDate, recentDate)
	}))
	defer server.Close()

	t.Setenv("SECURITYTRAILS_API_URL", server.URL)
	p := NewSecurityTrailsProvider(testClient("securitytrails"), "st-key")

	signal, err := p.Lookup(context.Background(), domain.IOC{Value: "evil.example", Type: domain.Domain})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	st, ok := signal.(domain.SecurityTrailsSignal)
	if !ok {
		t.Fatalf("Expected SecurityTrailsSignal, got %T", signal)
	}
	if st.ResolutionCount != 3 {
		t.Errorf("ResolutionCount = %d, want 3", st.ResolutionCount)
	}
	if st.RecentCount != 1 {
		t.Errorf("RecentCount = %d, want 1", st.RecentCount)
	}
}

func TestSecurityTrailsNoHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[]}`))
	}))
	defer server.Close()

	t.Setenv("SECURITYTRAILS_API_URL", server.URL)
	p := NewSecurityTrailsProvider(testClient("securitytrails"), "st-key")

	signal, err := p.Lookup(context.Background(), domain.IOC{Value: "fresh.example", Type: domain.Domain})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	st := signal.(domain.SecurityTrailsSignal)
	if st.ResolutionCount != 0 || st.RecentCount != 0 {
		t.Errorf("Expected empty signal, got %+v", st)
	}
	if st.SubScore() != 0 {
		t.Errorf("Empty history must score 0, got %f", st.SubScore())
	}
}

func TestSecurityTrailsRejectsIPs(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	t.Setenv("SECURITYTRAILS_API_URL", server.URL)
	p := NewSecurityTrailsProvider(testClient("securitytrails"), "st-key")

	_, err := p.Lookup(context.Background(), domain.IOC{Value: "198.51.100.7", Type: domain.IPAddress})
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable for IP lookup, got %v", err)
	}
	if requests != 0 {
		t.Errorf("Expected no upstream requests, got %d", requests)
	}
}

func TestSecurityTrailsMissingKey(t *testing.T) {
	p := NewSecurityTrailsProvider(testClient("securitytrails"), "")

	_, err := p.Lookup(context.Background(), domain.IOC{Value: "evil.example", Type: domain.Domain})
	if !errors.Is(err, ports.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestSecurityTrailsMalformedDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records":[{"first_seen":"not-a-date"},{"first_seen":""}]}`))
	}))
	defer server.Close()

	t.Setenv("SECURITYTRAILS_API_URL", server.URL)
	p := NewSecurityTrailsProvider(testClient("securitytrails"), "st-key")

	signal, err := p.Lookup(context.Background(), domain.IOC{Value: "evil.example", Type: domain.Domain})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	// Unparseable dates still count as resolutions, just never as recent.
	st := signal.(domain.SecurityTrailsSignal)
	if st.ResolutionCount != 2 {
		t.Errorf("ResolutionCount = %d, want 2", st.ResolutionCount)
	}
	if st.RecentCount != 0 {
		t.Errorf("RecentCount = %d, want 0", st.RecentCount)
	}
}
