package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.ParseAccess != nil && s.deps.Login.GetByLoginID != nil
}

func (s Service) ValidateCredentials(ctx context.Context, loginID, password string) (AccountRecord, error) {
	return RunValidateCredentials(ctx, loginID, password, s.deps.Login)
}

func (s Service) Login(ctx context.Context, loginID, password string, rememberMe bool) (*IssuedTokens, error) {
	return RunLogin(ctx, loginID, password, rememberMe, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*IssuedTokens, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, accessToken, refreshToken string) (string, error) {
	return RunLogout(ctx, accessToken, refreshToken, s.deps.Logout)
}

func (s Service) ValidateAccess(ctx context.Context, token string) (AccessIdentity, error) {
	return RunValidateAccess(ctx, token, s.deps.Validate)
}

func (s Service) SetupMFA(ctx context.Context, accountID string) (*MFASetupResult, error) {
	return RunSetupMFA(ctx, accountID, s.deps.MFA)
}

func (s Service) EnableMFA(ctx context.Context, accountID, secret, code string) ([]string, error) {
	return RunEnableMFA(ctx, accountID, secret, code, s.deps.MFA)
}

func (s Service) DisableMFA(ctx context.Context, accountID string) error {
	return RunDisableMFA(ctx, accountID, s.deps.MFA)
}

func (s Service) VerifyMFA(ctx context.Context, accountID, code string) (bool, error) {
	return RunVerifyMFA(ctx, accountID, code, s.deps.MFA)
}

func (s Service) VerifyRecoveryCode(ctx context.Context, accountID, code string) (bool, error) {
	return RunVerifyRecoveryCode(ctx, accountID, code, s.deps.MFA)
}

func (s Service) MFAStatus(ctx context.Context, accountID string) (MFARecord, error) {
	return RunMFAStatus(ctx, accountID, s.deps.MFA)
}

func (s Service) CheckMFA(ctx context.Context, accountID, mfaToken string) error {
	return RunCheckMFA(ctx, accountID, mfaToken, s.deps.MFA)
}
