package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is the allow-list applied to WebSocket upgrade requests.
// Origins are compared as lower-cased scheme://host pairs.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// newOriginPolicy builds a policy from configured origins and returns the
// normalized list it accepted. "*" allows every origin; malformed entries
// are logged and skipped.
func newOriginPolicy(origins []string) (originPolicy, []string) {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	accepted := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			policy.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		if _, dup := policy.allowed[normalized]; dup {
			continue
		}
		policy.allowed[normalized] = struct{}{}
		accepted = append(accepted, normalized)
	}

	return policy, accepted
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, exists := p.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// checkOrigin is the upgrader's CheckOrigin hook.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	configMu.RLock()
	allowed := activeOrigins.allows(origin)
	configMu.RUnlock()

	if !allowed {
		slog.Warn("blocked WebSocket connection from disallowed origin", "origin", origin)
	}
	return allowed
}
