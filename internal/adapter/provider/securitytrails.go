package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

const (
	securityTrailsBaseURL = "https://api.securitytrails.com/v1"

	// churnWindowDays define o que conta como resolução "recente"
	churnWindowDays = 90
)

type SecurityTrailsProvider struct {
	client  *ResilientClient
	apiKey  string
	baseURL string
}

func NewSecurityTrailsProvider(client *ResilientClient, apiKey string) *SecurityTrailsProvider {
	if client == nil {
		client = NewResilientClient("securitytrails", ports.DefaultProviderTimeout, DefaultResilientClientConfig())
	}
	return &SecurityTrailsProvider{
		client:  client,
		apiKey:  apiKey,
		baseURL: getEnv("SECURITYTRAILS_API_URL", securityTrailsBaseURL),
	}
}

func (p *SecurityTrailsProvider) Name() domain.ProviderName {
	return domain.ProviderSecurityTrails
}

type stResponse struct {
	Records []stRecord `json:"records"`
}

type stRecord struct {
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

func (p *SecurityTrailsProvider) Lookup(ctx context.Context, ioc domain.IOC) (domain.Signal, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: SECURITYTRAILS_API_KEY is not set", ports.ErrUnavailable)
	}
	if ioc.Type != domain.Domain {
		return nil, fmt.Errorf("%w: securitytrails only resolves domains", ports.ErrUnavailable)
	}

	endpoint := fmt.Sprintf("%s/history/%s/dns/a", p.baseURL, ioc.Value)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APIKEY", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data stResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode securitytrails json: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -churnWindowDays)
	recent := 0
	for _, record := range data.Records {
		firstSeen, err := time.Parse("2006-01-02", record.FirstSeen)
		if err != nil {
			continue
		}
		if firstSeen.After(cutoff) {
			recent++
		}
	}

	return domain.SecurityTrailsSignal{
		ResolutionCount: len(data.Records),
		RecentCount:     recent,
	}, nil
}
