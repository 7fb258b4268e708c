package client

import (
	"context"
	"net/http"
	"time"
)

// Session is the outcome of Login and Refresh.
type Session struct {
	User       User `json:"user"`
	RequireMFA bool `json:"requireMfa"`
}

// MFASetup is the enrollment preview. RecoveryCodes are replaced when the
// enrollment is enabled.
type MFASetup struct {
	Secret        string   `json:"secret"`
	QRCodeDataURL string   `json:"qrCodeDataUrl"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

type MFAStatus struct {
	Enabled                bool       `json:"enabled"`
	LastUsed               *time.Time `json:"lastUsed"`
	RecoveryCodesRemaining int        `json:"recoveryCodesRemaining"`
}

type verifyResult struct {
	Verified bool   `json:"verified"`
	MFAToken string `json:"mfaToken"`
}

// FetchCSRF asks the server for a fresh CSRF cookie.
func (a *AuthContext) FetchCSRF(ctx context.Context) error {
	return a.send(ctx, http.MethodGet, "/csrf/token", nil, nil)
}

// Login starts a session. A wrong username or password is an APIError with
// CodeInvalidCredentials.
func (a *AuthContext) Login(ctx context.Context, username, password string, rememberMe bool) (*Session, error) {
	var s Session
	err := a.call(ctx, http.MethodPost, "/auth/login", map[string]any{
		"username":   username,
		"password":   password,
		"rememberMe": rememberMe,
	}, &s)
	if err != nil {
		return nil, err
	}
	a.setUser(&s.User)
	return &s, nil
}

// Refresh rotates the refresh cookie.
func (a *AuthContext) Refresh(ctx context.Context) (*Session, error) {
	var s Session
	if err := a.call(ctx, http.MethodPost, "/auth/refresh", nil, &s); err != nil {
		a.setUser(nil)
		return nil, err
	}
	a.setUser(&s.User)
	return &s, nil
}

// Logout revokes the session server side and closes the context, also when
// the server call fails.
func (a *AuthContext) Logout(ctx context.Context) error {
	defer a.Close()
	return a.call(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Check returns the session user, refreshing once if the access cookie has
// expired.
func (a *AuthContext) Check(ctx context.Context) (*User, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
		User          User `json:"user"`
	}
	if err := a.call(ctx, http.MethodGet, "/auth/check", nil, &out); err != nil {
		a.setUser(nil)
		return nil, err
	}
	a.setUser(&out.User)
	return &out.User, nil
}

// Me reads the account through the MFA-protected route.
func (a *AuthContext) Me(ctx context.Context) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := a.call(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (a *AuthContext) MFASetup(ctx context.Context) (*MFASetup, error) {
	var out MFASetup
	if err := a.call(ctx, http.MethodGet, "/auth/mfa/setup", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MFAEnable confirms the secret from MFASetup with a current code and
// returns the recovery codes to show the user once.
func (a *AuthContext) MFAEnable(ctx context.Context, secret, code string) ([]string, error) {
	var out struct {
		Enabled       bool     `json:"enabled"`
		RecoveryCodes []string `json:"recoveryCodes"`
	}
	if err := a.call(ctx, http.MethodPost, "/auth/mfa/enable", map[string]string{"token": code, "secret": secret}, &out); err != nil {
		return nil, err
	}
	return out.RecoveryCodes, nil
}

func (a *AuthContext) MFADisable(ctx context.Context) error {
	if err := a.call(ctx, http.MethodPost, "/auth/mfa/disable", nil, nil); err != nil {
		return err
	}
	a.SetMFAToken("")
	return nil
}

// MFAVerify submits a TOTP code. A wrong code is (false, nil); on success
// the MFA-verified token is attached to later requests.
func (a *AuthContext) MFAVerify(ctx context.Context, code string) (bool, error) {
	return a.verify(ctx, "/auth/mfa/verify", map[string]string{"token": code}, CodeInvalidMFAToken)
}

// MFARecovery submits a recovery code. A used or unknown code is
// (false, nil).
func (a *AuthContext) MFARecovery(ctx context.Context, code string) (bool, error) {
	return a.verify(ctx, "/auth/mfa/recovery", map[string]string{"code": code}, CodeInvalidRecoveryCode)
}

func (a *AuthContext) verify(ctx context.Context, path string, in map[string]string, rejected string) (bool, error) {
	var out verifyResult
	if err := a.call(ctx, http.MethodPost, path, in, &out); err != nil {
		if HasCode(err, rejected) {
			return false, nil
		}
		return false, err
	}
	if !out.Verified || out.MFAToken == "" {
		return false, nil
	}
	a.SetMFAToken(out.MFAToken)
	return true, nil
}

func (a *AuthContext) MFAStatus(ctx context.Context) (*MFAStatus, error) {
	var out MFAStatus
	if err := a.call(ctx, http.MethodGet, "/auth/mfa/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
