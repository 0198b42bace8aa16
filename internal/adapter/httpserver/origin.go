package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns the upgrader's origin check. It allows empty origins
// (non-browser clients such as the producer), origins whose host matches the
// request host, and every origin in allowed. When isDevelopment is true,
// localhost origins are additionally allowed.
func NewCheckOrigin(allowed []string, isDevelopment bool) func(r *http.Request) bool {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if origin := normalizeOrigin(o); origin != "" {
			allowedSet[origin] = struct{}{}
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
			return false
		}

		if strings.EqualFold(u.Host, r.Host) {
			return true
		}

		if _, ok := allowedSet[normalizeOrigin(origin)]; ok {
			return true
		}

		if isDevelopment && isLocalhost(u.Hostname()) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func normalizeOrigin(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
