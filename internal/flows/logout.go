package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/jwt"
	gjwt "github.com/golang-jwt/jwt/v5"
)

// LogoutErrors carries host-level sentinel errors used by the logout flow.
type LogoutErrors struct {
	EngineNotReady       error
	BlacklistUnavailable error
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	ParseAccess  func(string) (*jwt.AccessClaims, error)
	ParseRefresh func(string) (*jwt.RefreshClaims, error)
	Revoke       func(context.Context, string, time.Time) error

	MetricInc func(int)
	EmitAudit AuditFunc
	Log       *logger.Logger

	LogoutMetric int
	LogoutEvent  string
	Errors       LogoutErrors
}

// RunLogout blacklists the presented tokens until their natural expiry and
// returns the subject of the access token when it could be read. Tokens that
// are expired or fail verification can never validate again, so they are
// skipped and the call still succeeds. Only a blacklist write failure is
// reported, and the write completes before this returns.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) (string, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	deps.Log = orNop(deps.Log)
	if deps.ParseAccess == nil || deps.Revoke == nil {
		return "", deps.Errors.EngineNotReady
	}

	subject := ""
	if accessToken != "" {
		if claims, err := deps.ParseAccess(accessToken); err == nil {
			subject = claims.Subject
			if err := deps.Revoke(ctx, accessToken, expiryOf(claims)); err != nil {
				deps.Log.WithContext(ctx).WithError(err).Error("access token revocation failed", map[string]interface{}{"user_id": subject})
				return subject, fmt.Errorf("%w: %v", deps.Errors.BlacklistUnavailable, err)
			}
		}
	}

	if refreshToken != "" && deps.ParseRefresh != nil {
		if claims, err := deps.ParseRefresh(refreshToken); err == nil {
			if subject == "" {
				subject = claims.Subject
			}
			if err := deps.Revoke(ctx, refreshToken, expiryOf(claims)); err != nil {
				deps.Log.WithContext(ctx).WithError(err).Error("refresh token revocation failed", map[string]interface{}{"user_id": claims.Subject})
				return subject, fmt.Errorf("%w: %v", deps.Errors.BlacklistUnavailable, err)
			}
		}
	}

	deps.MetricInc(deps.LogoutMetric)
	deps.EmitAudit(ctx, deps.LogoutEvent, true, subject, nil, nil)
	return subject, nil
}

func expiryOf(claims interface {
	GetExpirationTime() (*gjwt.NumericDate, error)
}) time.Time {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
