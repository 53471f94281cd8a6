package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
	"github.com/hive-corporation/spyglass/internal/core/ports"
)

const whoisBaseURL = "https://www.whoisxmlapi.com/whoisserver/WhoisService"

type WhoisProvider struct {
	client  *ResilientClient
	apiKey  string
	baseURL string
}

func NewWhoisProvider(client *ResilientClient, apiKey string) *WhoisProvider {
	if client == nil {
		client = NewResilientClient("whois", ports.DefaultProviderTimeout, DefaultResilientClientConfig())
	}
	return &WhoisProvider{
		client:  client,
		apiKey:  apiKey,
		baseURL: getEnv("WHOIS_API_URL", whoisBaseURL),
	}
}

func (p *WhoisProvider) Name() domain.ProviderName {
	return domain.ProviderWhois
}

type whoisResponse struct {
	WhoisRecord whoisRecord `json:"WhoisRecord"`
}

type whoisRecord struct {
	RegistrarName string         `json:"registrarName"`
	CreatedDate   string         `json:"createdDate"`
	RegistryData  *whoisRegistry `json:"registryData"`
}

type whoisRegistry struct {
	CreatedDate string `json:"createdDate"`
}

func (p *WhoisProvider) Lookup(ctx context.Context, ioc domain.IOC) (domain.Signal, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: WHOIS_API_KEY is not set", ports.ErrUnavailable)
	}

	endpoint := fmt.Sprintf("%s?apiKey=%s&domainName=%s&outputFormat=JSON",
		p.baseURL, url.QueryEscape(p.apiKey), url.QueryEscape(ioc.Value))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data whoisResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode whois json: %w", err)
	}

	record := data.WhoisRecord
	created := record.CreatedDate
	if created == "" && record.RegistryData != nil {
		created = record.RegistryData.CreatedDate
	}

	// Idade negativa marca "data de criação desconhecida"
	ageDays := -1
	if t, ok := parseWhoisTime(created); ok {
		age := int(time.Since(t).Hours() / 24)
		if age < 0 {
			age = 0
		}
		ageDays = age
	}

	return domain.WhoisSignal{
		Registrar:     record.RegistrarName,
		DomainAgeDays: ageDays,
	}, nil
}

// parseWhoisTime tries the date layouts the API is known to return.
func parseWhoisTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05-0700",
		"2006-01-02 15:04:05 MST",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
