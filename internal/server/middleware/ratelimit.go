package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits each client IP to limit
// requests per window. The persistent server installs this with the
// 100-requests-per-15-minutes policy; the stateless embodiment relies on an
// equivalent limit at its fronting gateway instead.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(limit, window)
}
