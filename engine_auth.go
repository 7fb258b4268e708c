package procureauth

import (
	"context"
	"errors"
)

// ValidateCredentials checks loginID and password without issuing tokens.
// Every failure is ErrInvalidCredentials.
func (e *Engine) ValidateCredentials(ctx context.Context, loginID, password string) (*Principal, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	account, err := e.flows.ValidateCredentials(ctx, loginID, password)
	if err != nil {
		return nil, err
	}
	p := principalFromAccount(account)
	return &p, nil
}

// Login authenticates and issues an access token, plus a refresh token when
// rememberMe is set. MFARequired on the result means protected routes will
// demand an MFA-verified token until the second factor is presented.
func (e *Engine) Login(ctx context.Context, loginID, password string, rememberMe bool) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	tokens, err := e.flows.Login(ctx, loginID, password, rememberMe)
	if err != nil {
		return nil, err
	}
	return loginResultFromTokens(tokens), nil
}

// Refresh rotates a refresh token. The presented token is revoked before
// new tokens are issued, so each refresh token works once.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrInvalidRefreshToken
	}
	tokens, err := e.flows.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return loginResultFromTokens(tokens), nil
}

// Logout revokes the access token and, when given, the refresh token until
// their natural expiry. Unreadable or expired tokens are ignored.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	_, err := e.flows.Logout(ctx, accessToken, refreshToken)
	return err
}

// ValidateAccess verifies an access token and checks revocation. It does
// not touch the credential store.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*Principal, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	id, err := e.flows.ValidateAccess(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			e.metricInc(MetricTokenRevoked)
		}
		return nil, err
	}
	return &Principal{
		ID:       id.Subject,
		LoginID:  id.LoginID,
		Role:     id.Role,
		TenantID: id.TenantID,
	}, nil
}
