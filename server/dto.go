package server

import "github.com/MrEthical07/procureauth"

type loginRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Password   string `json:"password" binding:"required,min=4"`
	RememberMe bool   `json:"rememberMe"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type enableMFARequest struct {
	Token  string `json:"token" binding:"required,len=6,numeric"`
	Secret string `json:"secret" binding:"required"`
}

type verifyMFARequest struct {
	Token string `json:"token" binding:"required,len=6,numeric"`
}

type recoveryRequest struct {
	Code string `json:"code" binding:"required"`
}

type sessionResponse struct {
	User       procureauth.Principal `json:"user"`
	RequireMFA bool                  `json:"requireMfa"`
}

type setupResponse struct {
	Secret        string   `json:"secret"`
	QRCodeDataURL string   `json:"qrCodeDataUrl"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

type enableResponse struct {
	Enabled       bool     `json:"enabled"`
	RecoveryCodes []string `json:"recoveryCodes"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	MFAToken string `json:"mfaToken"`
}

type statusResponse struct {
	Enabled                bool    `json:"enabled"`
	LastUsed               *string `json:"lastUsed"`
	RecoveryCodesRemaining int     `json:"recoveryCodesRemaining"`
}
