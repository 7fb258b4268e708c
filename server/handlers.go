package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/csrf"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/middleware"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	engine  *procureauth.Engine
	csrf    *csrf.Guard
	cookies cookieJar
	log     *logger.Logger
	fail    middleware.AbortFunc
}

func (h *handlers) badRequest(c *gin.Context, err error) {
	h.log.WithContext(c.Request.Context()).Debug("request binding failed", map[string]interface{}{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
	respondError(c, http.StatusBadRequest, CodeBadRequest, "invalid request body")
}

// principal returns the principal the pipeline attached. Routes without
// RequiresAuth never reach handlers that call it.
func (h *handlers) principal(c *gin.Context) (*procureauth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.fail(c, middleware.ErrUnauthenticated)
		return nil, false
	}
	return p, true
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.engine.Login(c.Request.Context(), req.Username, req.Password, req.RememberMe)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.cookies.setSession(c, res.AccessToken, res.AccessExpiresAt, res.RefreshToken, res.RefreshExpiresAt)
	respond(c, sessionResponse{User: res.Principal, RequireMFA: res.MFARequired})
}

func (h *handlers) refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshCookie)
	if token == "" {
		var req refreshRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				h.badRequest(c, err)
				return
			}
		}
		token = req.RefreshToken
	}
	if token == "" {
		respondError(c, http.StatusOK, CodeRefreshTokenMissing, "refresh token missing")
		return
	}

	res, err := h.engine.Refresh(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, procureauth.ErrInvalidRefreshToken) {
			h.cookies.clearSession(c)
		}
		h.fail(c, err)
		return
	}
	h.cookies.setSession(c, res.AccessToken, res.AccessExpiresAt, res.RefreshToken, res.RefreshExpiresAt)
	respond(c, sessionResponse{User: res.Principal, RequireMFA: res.MFARequired})
}

// logout revokes whatever tokens the cookies carry. It does not require a
// valid access token so an expired session can still be cleared.
func (h *handlers) logout(c *gin.Context) {
	access, _ := c.Cookie(middleware.AccessCookie)
	refresh, _ := c.Cookie(middleware.RefreshCookie)

	if err := h.engine.Logout(c.Request.Context(), access, refresh); err != nil {
		h.fail(c, err)
		return
	}
	h.cookies.clearSession(c)
	respond(c, gin.H{"message": "logged out"})
}

func (h *handlers) check(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	respond(c, gin.H{"authenticated": true, "user": p})
}

// me re-reads the account so a disabled account stops resolving before its
// access token expires.
func (h *handlers) me(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	fresh, err := h.engine.Principal(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"user": fresh})
}

func (h *handlers) mfaSetup(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	setup, err := h.engine.SetupMFA(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, setupResponse{
		Secret:        setup.Secret,
		QRCodeDataURL: setup.QRCodeDataURL,
		RecoveryCodes: setup.RecoveryCodes,
	})
}

func (h *handlers) mfaEnable(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req enableMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	res, err := h.engine.EnableMFA(c.Request.Context(), p.ID, req.Secret, req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, enableResponse{Enabled: res.Enabled, RecoveryCodes: res.RecoveryCodes})
}

func (h *handlers) mfaDisable(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.engine.DisableMFA(c.Request.Context(), p.ID); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"disabled": true})
}

// mfaVerify answers a wrong code with a 200 envelope so the client can
// prompt again without treating the session as lost.
func (h *handlers) mfaVerify(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req verifyMFARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	valid, err := h.engine.VerifyMFA(c.Request.Context(), p.ID, req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !valid {
		respondError(c, http.StatusOK, CodeInvalidMFAToken, "invalid mfa token")
		return
	}
	h.issueMFAToken(c, p.ID)
}

func (h *handlers) mfaRecovery(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req recoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	valid, err := h.engine.VerifyRecoveryCode(c.Request.Context(), p.ID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !valid {
		respondError(c, http.StatusOK, CodeInvalidRecoveryCode, "invalid recovery code")
		return
	}
	h.issueMFAToken(c, p.ID)
}

func (h *handlers) issueMFAToken(c *gin.Context, principalID string) {
	token, _, err := h.engine.IssueMFAVerifiedToken(principalID)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, verifyResponse{Verified: true, MFAToken: token})
}

func (h *handlers) mfaStatus(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	st, err := h.engine.MFAStatus(c.Request.Context(), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	var lastUsed *string
	if st.LastUsed != nil {
		s := st.LastUsed.UTC().Format(time.RFC3339)
		lastUsed = &s
	}
	respond(c, statusResponse{
		Enabled:                st.Enabled,
		LastUsed:               lastUsed,
		RecoveryCodesRemaining: st.RecoveryCodesRemaining,
	})
}

func (h *handlers) csrfToken(c *gin.Context) {
	token, err := h.csrf.Issue(c.Writer)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, gin.H{"csrfToken": token})
}

func (h *handlers) health(c *gin.Context) {
	respond(c, gin.H{"status": "ok"})
}
