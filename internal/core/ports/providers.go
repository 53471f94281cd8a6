package ports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

// ErrUnavailable marks a provider that cannot serve the request at all,
// as opposed to one that tried and failed. Missing credentials and
// unsupported IOC types fall here.
var ErrUnavailable = errors.New("provider unavailable")

// DefaultProviderTimeout bounds a single provider call when the
// registration does not set its own deadline.
const DefaultProviderTimeout = 8 * time.Second

// IntelProvider is the contract every intelligence source adapter implements.
type IntelProvider interface {
	// Name identifies the provider in results, metrics and scoring weights.
	Name() domain.ProviderName

	// Lookup fetches the provider's observation for the IOC. It must honor
	// ctx cancellation and return ErrUnavailable when it cannot serve the
	// IOC at all.
	Lookup(ctx context.Context, ioc domain.IOC) (domain.Signal, error)
}

// RegisteredProvider pairs a provider with its per-call timeout.
type RegisteredProvider struct {
	Client  IntelProvider
	Timeout time.Duration
}

// ProviderRegistry holds the configured providers for an enrichment run.
// Registration happens at startup; afterwards the registry is read-only.
type ProviderRegistry struct {
	byName map[domain.ProviderName]RegisteredProvider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		byName: make(map[domain.ProviderName]RegisteredProvider),
	}
}

// Register adds a provider. A timeout of zero or less falls back to
// DefaultProviderTimeout.
func (r *ProviderRegistry) Register(client IntelProvider, timeout time.Duration) error {
	if client == nil {
		return fmt.Errorf("cannot register nil provider")
	}
	name := client.Name()
	if name == "" {
		return fmt.Errorf("cannot register provider with empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	r.byName[name] = RegisteredProvider{Client: client, Timeout: timeout}
	return nil
}

// All returns every registered provider in name order.
func (r *ProviderRegistry) All() []RegisteredProvider {
	names := make([]domain.ProviderName, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	providers := make([]RegisteredProvider, 0, len(names))
	for _, name := range names {
		providers = append(providers, r.byName[name])
	}
	return providers
}

func (r *ProviderRegistry) Len() int {
	return len(r.byName)
}
