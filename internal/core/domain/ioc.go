package domain

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

type IOCType string

const (
	IPAddress IOCType = "ip"
	Domain    IOCType = "domain"
)

type IOC struct {
	Value string  `json:"value"` // O valor normalizado (ex: evil.example ou 198.51.100.7)
	Type  IOCType `json:"type"`  // O tipo (ip ou domain)
}

// NewIOC normalizes and validates a raw value against its declared type.
// Two enrichments of the same indicator always resolve to the same identity.
func NewIOC(value string, iocType IOCType) (IOC, error) {
	normalized := NormalizeIOCValue(value, iocType)
	if normalized == "" {
		return IOC{}, fmt.Errorf("%w: empty value", ErrInvalidIOC)
	}

	switch iocType {
	case IPAddress:
		if net.ParseIP(normalized) == nil {
			return IOC{}, fmt.Errorf("%w: %q is not a valid IP address", ErrInvalidIOC, value)
		}
	case Domain:
		if net.ParseIP(normalized) != nil {
			return IOC{}, fmt.Errorf("%w: %q is an IP address, not a domain", ErrInvalidIOC, value)
		}
		if !isValidDomainName(normalized) {
			return IOC{}, fmt.Errorf("%w: %q is not a valid domain name", ErrInvalidIOC, value)
		}
	default:
		return IOC{}, fmt.Errorf("%w: unknown ioc type %q", ErrInvalidIOC, iocType)
	}

	return IOC{Value: normalized, Type: iocType}, nil
}

// Key is the storage identity of an IOC.
func (i IOC) Key() string {
	return string(i.Type) + ":" + i.Value
}

// NormalizeIOCValue normalizes IOC values for stable identity matching
func NormalizeIOCValue(value string, iocType IOCType) string {
	normalized := strings.TrimSpace(value)

	switch iocType {
	case Domain:
		// Lowercase domain, drop the FQDN trailing dot
		normalized = strings.ToLower(normalized)
		normalized = strings.TrimSuffix(normalized, ".")
		return normalized

	case IPAddress:
		// Canonical text form (collapses IPv6 variants, strips leading zeros)
		if parsed := net.ParseIP(normalized); parsed != nil {
			return parsed.String()
		}
		return normalized

	default:
		return normalized
	}
}

// DetectIOCType attempts to determine the IOC type from the value
func DetectIOCType(value string) IOCType {
	trimmed := strings.TrimSpace(value)
	if net.ParseIP(trimmed) != nil {
		return IPAddress
	}
	return Domain
}

// ExtractIOC pulls an assessable indicator out of a raw value.
// URLs and host:port forms reduce to their host; bare values pass
// straight through type detection.
// Example: "http://198.51.100.7/malware.sh" produces the IP 198.51.100.7.
func ExtractIOC(raw string) (IOC, error) {
	candidate := strings.TrimSpace(raw)

	if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
		if u, err := url.Parse(candidate); err == nil && u.Hostname() != "" {
			candidate = u.Hostname()
		}
	} else {
		// Strip path or query fragments glued onto a bare host
		if i := strings.IndexAny(candidate, "/?"); i != -1 {
			candidate = candidate[:i]
		}
		if host, _, err := net.SplitHostPort(candidate); err == nil {
			candidate = host
		}
	}

	return NewIOC(candidate, DetectIOCType(candidate))
}

func isValidDomainName(name string) bool {
	if len(name) == 0 || len(name) > 253 {
		return false
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if r != '-' && !isAlphanumeric(r) {
				return false
			}
		}
	}

	// TLD must be alphabetic (rejects raw values like 1.2.3.4.5)
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}

	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
