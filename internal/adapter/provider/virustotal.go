package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

const virusTotalBaseURL = "https://www.virustotal.com/api/v3"

type VirusTotalProvider struct {
	client  *ResilientClient
	apiKey  string
	baseURL string
}

func NewVirusTotalProvider(client *ResilientClient, apiKey string) *VirusTotalProvider {
	if client == nil {
		client = NewResilientClient("virustotal", ports.DefaultProviderTimeout, DefaultResilientClientConfig())
	}
	return &VirusTotalProvider{
		client:  client,
		apiKey:  apiKey,
		baseURL: getEnv("VIRUSTOTAL_API_URL", virusTotalBaseURL),
	}
}

func (p *VirusTotalProvider) Name() domain.ProviderName {
	return domain.ProviderVirusTotal
}

type vtResponse struct {
	Data vtData `json:"data"`
}

type vtData struct {
	Attributes vtAttributes `json:"attributes"`
}

type vtAttributes struct {
	LastAnalysisStats vtAnalysisStats `json:"last_analysis_stats"`
}

type vtAnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

func (p *VirusTotalProvider) Lookup(ctx context.Context, ioc domain.IOC) (domain.Signal, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: VIRUSTOTAL_API_KEY is not set", ports.ErrUnavailable)
	}

	var endpoint string
	switch ioc.Type {
	case domain.IPAddress:
		endpoint = fmt.Sprintf("%s/ip_addresses/%s", p.baseURL, ioc.Value)
	case domain.Domain:
		endpoint = fmt.Sprintf("%s/domains/%s", p.baseURL, ioc.Value)
	default:
		return nil, fmt.Errorf("%w: unsupported ioc type %q", ports.ErrUnavailable, ioc.Type)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	// A API v3 exige a key no header
	req.Header.Set("x-apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data vtResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode virustotal json: %w", err)
	}

	stats := data.Data.Attributes.LastAnalysisStats
	return domain.VirusTotalSignal{
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
		Undetected: stats.Undetected,
	}, nil
}
