package http

import (
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// OriginPolicy is the allow-list shared by CORS and the socket upgrade.
// It can be swapped at runtime when the config file changes.
type OriginPolicy struct {
	mu       sync.RWMutex
	allowAll bool
	allowed  map[string]struct{}
	log      *zerolog.Logger
}

// NewOriginPolicy builds a policy from configured origins. "*" allows any origin.
func NewOriginPolicy(origins []string, logger *zerolog.Logger) *OriginPolicy {
	p := &OriginPolicy{log: logger}
	p.Update(origins)
	return p
}

// Update replaces the allow-list.
func (p *OriginPolicy) Update(origins []string) {
	normalized, allowAll := p.normalizeOrigins(origins)

	allowed := make(map[string]struct{}, len(normalized))
	for _, o := range normalized {
		allowed[o] = struct{}{}
	}

	p.mu.Lock()
	p.allowed = allowed
	p.allowAll = allowAll
	p.mu.Unlock()
}

// Allowed reports whether an Origin header value passes the policy. An empty
// origin never does.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.allowAll {
		return true
	}
	_, exists := p.allowed[normalized]
	return exists
}

func (p *OriginPolicy) normalizeOrigins(origins []string) ([]string, bool) {
	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}

		n, ok := normalizeOrigin(trimmed)
		if !ok {
			if p.log != nil {
				p.log.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			}
			continue
		}
		normalized = append(normalized, n)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
