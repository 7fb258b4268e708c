package server

import (
	"net/http"
	"time"

	"github.com/MrEthical07/procureauth/middleware"
	"github.com/gin-gonic/gin"
)

const refreshCookiePath = "/api/auth"

type cookieJar struct {
	secure bool
}

func (j cookieJar) set(c *gin.Context, name, value, path string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j cookieJar) clear(c *gin.Context, name, path string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j cookieJar) setSession(c *gin.Context, access string, accessExp time.Time, refresh string, refreshExp time.Time) {
	j.set(c, middleware.AccessCookie, access, "/", accessExp)
	if refresh != "" {
		j.set(c, middleware.RefreshCookie, refresh, refreshCookiePath, refreshExp)
	}
}

func (j cookieJar) clearSession(c *gin.Context) {
	j.clear(c, middleware.AccessCookie, "/")
	j.clear(c, middleware.RefreshCookie, refreshCookiePath)
}
