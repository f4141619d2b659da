package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/staywatch/internal/logger"
	"github.com/MrSnakeDoc/staywatch/internal/utils"
)

// AllowOnlyIPs rejects callers outside m with 403. An empty matcher lets
// everything through. trustProxy should be true behind a trusted reverse
// proxy or tunnel (e.g., cloudflared).
func AllowOnlyIPs(m *utils.IPMatcher, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("caller rejected",
					logger.String("ip", ip.String()),
					logger.String("remote_addr", r.RemoteAddr),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
