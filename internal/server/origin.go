package server

import (
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// setAllowedOrigins normalizes the configured origins into the allowlist used
// by both the CORS middleware and the socket upgrade check. A single "*"
// entry allows every origin.
func (s *Server) setAllowedOrigins(origins []string) {
	s.allowedOrigins = make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			s.allowAllOrigins = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			s.log.Warn("ignoring_invalid_origin", zap.String("origin", origin))
			continue
		}
		s.allowedOrigins[normalized] = struct{}{}
	}
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

func (s *Server) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if s.allowAllOrigins {
		return true
	}
	normalized, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, exists := s.allowedOrigins[normalized]
	return exists
}

// checkOrigin gates WebSocket upgrades on the configured origin allowlist.
// Requests without an Origin header (non-browser clients) are allowed;
// browsers always send one.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.isOriginAllowed(origin) {
		return true
	}
	s.log.Warn("blocked_origin", zap.String("origin", origin))
	return false
}
