package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/csrf"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/internal/rate"
	"github.com/gin-gonic/gin"
)

var (
	// ErrUnauthenticated is passed to AbortFunc when a protected route is
	// called without an access token cookie.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrTooManyRequests is passed to AbortFunc when a route's budget is
	// spent.
	ErrTooManyRequests = errors.New("too many requests")
)

// Authenticator is the slice of the engine the pipeline needs.
type Authenticator interface {
	ValidateAccess(ctx context.Context, token string) (*procureauth.Principal, error)
	CheckMFA(ctx context.Context, p *procureauth.Principal, mfaToken string) error
	RecordCSRFRejection(ctx context.Context, path string, err error)
}

// AbortFunc renders a rejection and must abort the gin context.
type AbortFunc func(c *gin.Context, err error)

type Config struct {
	Engine Authenticator
	CSRF   *csrf.Guard
	// Limiter defaults to an in-process limiter.
	Limiter rate.Limiter
	Log     *logger.Logger
	Abort   AbortFunc
}

// Pipeline evaluates Route declarations.
type Pipeline struct {
	engine  Authenticator
	csrf    *csrf.Guard
	limiter rate.Limiter
	log     *logger.Logger
	abort   AbortFunc
}

func NewPipeline(cfg Config) *Pipeline {
	p := &Pipeline{
		engine:  cfg.Engine,
		csrf:    cfg.CSRF,
		limiter: cfg.Limiter,
		log:     cfg.Log,
		abort:   cfg.Abort,
	}
	if p.csrf == nil {
		p.csrf = csrf.NewGuard(csrf.Config{})
	}
	if p.limiter == nil {
		p.limiter = rate.NewLocal()
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	if p.abort == nil {
		p.abort = defaultAbort
	}
	return p
}

// Verify checks route's RequiresCSRF against the guard's exemption list.
// An unsafe route is validated exactly when its path is not exempt, so the
// flag must agree with the guard. A safe route may declare RequiresCSRF
// but never on an exempt path.
func (p *Pipeline) Verify(route Route, fullPath string) error {
	exempt := p.csrf.IsExempt(fullPath)
	switch {
	case route.safe() && route.RequiresCSRF && exempt:
		return fmt.Errorf("route %s: RequiresCSRF set on exempt path %s", route.key(), fullPath)
	case !route.safe() && route.RequiresCSRF == exempt:
		return fmt.Errorf("route %s: RequiresCSRF=%t disagrees with csrf exemption of %s", route.key(), route.RequiresCSRF, fullPath)
	}
	return nil
}

// Handler returns the gin handler enforcing route.
func (p *Pipeline) Handler(route Route) gin.HandlerFunc {
	rule := rate.Rule{Limit: route.RateLimit.Limit, Window: route.RateLimit.Window}
	limitKey := route.key()

	return func(c *gin.Context) {
		ctx := procureauth.WithClientIP(c.Request.Context(), c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		if rule.Enabled() {
			if err := p.limiter.Allow(ctx, limitKey+":"+c.ClientIP(), rule); err != nil {
				if errors.Is(err, rate.ErrRateLimited) {
					p.abort(c, ErrTooManyRequests)
					return
				}
				// Throttling is best effort; a limiter outage admits the request.
				p.log.WithContext(ctx).WithError(err).Warn("rate limiter unavailable", map[string]interface{}{"route": limitKey})
			}
		}

		// The guard owns the exemption list; exempt and safe requests only
		// get a cookie minted when they lack one.
		if _, err := p.csrf.Protect(c.Writer, c.Request); err != nil {
			if errors.Is(err, csrf.ErrTokenMissing) || errors.Is(err, csrf.ErrTokenInvalid) {
				p.engine.RecordCSRFRejection(ctx, c.Request.URL.Path, err)
			}
			p.abort(c, err)
			return
		}

		if route.RequiresAuth || route.RequiresMFA {
			token, err := c.Cookie(AccessCookie)
			if err != nil || token == "" {
				p.abort(c, ErrUnauthenticated)
				return
			}
			principal, err := p.engine.ValidateAccess(ctx, token)
			if err != nil {
				p.abort(c, err)
				return
			}
			ctx = procureauth.WithPrincipal(ctx, principal)
			c.Request = c.Request.WithContext(ctx)
			c.Set(principalKey, principal)

			if route.RequiresMFA {
				if err := p.engine.CheckMFA(ctx, principal, c.GetHeader(MFAHeader)); err != nil {
					p.abort(c, err)
					return
				}
			}
		}

		c.Next()
	}
}

const principalKey = "procureauth.principal"

// PrincipalFrom returns the principal set by an authenticated route.
func PrincipalFrom(c *gin.Context) (*procureauth.Principal, bool) {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*procureauth.Principal); ok && p != nil {
			return p, true
		}
	}
	return procureauth.PrincipalFromContext(c.Request.Context())
}

func defaultAbort(c *gin.Context, err error) {
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, ErrTooManyRequests):
		status = http.StatusTooManyRequests
	case errors.Is(err, csrf.ErrTokenMissing), errors.Is(err, csrf.ErrTokenInvalid):
		status = http.StatusForbidden
	case errors.Is(err, procureauth.ErrBlacklistUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrPanic):
		status = http.StatusInternalServerError
	}
	c.AbortWithStatus(status)
}
