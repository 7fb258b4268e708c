package middleware

import (
	"net/http"
	"time"
)

const (
	// AccessCookie carries the access token.
	AccessCookie = "token"
	// RefreshCookie carries the refresh token. Its path is scoped to the
	// auth routes.
	RefreshCookie = "refresh_token"
	// MFAHeader carries the MFA-verified token on MFA-protected routes.
	MFAHeader = "X-MFA-Token"
)

// RateLimit is a budget of Limit requests per Window per client IP. The
// zero value disables throttling.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Route is the security declaration of one endpoint.
type Route struct {
	Name         string
	Method       string
	Path         string
	RateLimit    RateLimit
	RequiresAuth bool
	RequiresCSRF bool
	RequiresMFA  bool
}

// Throttled returns r with a rate limit of limit requests per window.
func (r Route) Throttled(limit int, window time.Duration) Route {
	r.RateLimit = RateLimit{Limit: limit, Window: window}
	return r
}

func (r Route) key() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Method + " " + r.Path
}

func (r Route) safe() bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}
