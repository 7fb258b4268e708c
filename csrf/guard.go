package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	// CookieName is the cookie carrying the current token.
	CookieName = "csrf_token"
	// HeaderName is the request header that must echo the cookie.
	HeaderName = "X-CSRF-Token"

	tokenBytes = 32
)

var (
	ErrTokenMissing = errors.New("csrf token missing")
	ErrTokenInvalid = errors.New("csrf token invalid")
)

// DefaultExemptPaths are the routes that bootstrap a session and therefore
// cannot present a token yet.
var DefaultExemptPaths = []string{
	"/auth/login",
	"/auth/refresh",
	"/auth/mfa/verify",
	"/csrf/token",
	"/health",
	"/health-check",
}

// State is the outcome of Protect for a single request.
type State int

const (
	NotValidated State = iota
	Validated
)

func (s State) String() string {
	if s == Validated {
		return "validated"
	}
	return "not_validated"
}

// Config tunes cookie attributes and the exemption list.
type Config struct {
	Secure      bool
	CookiePath  string
	APIPrefix   string
	ExemptPaths []string
	Rand        io.Reader
}

// Guard validates and rotates double-submit tokens.
type Guard struct {
	secure    bool
	path      string
	apiPrefix string
	exempt    map[string]struct{}
	rand      io.Reader
}

// NewGuard builds a guard. An empty ExemptPaths selects DefaultExemptPaths
// and an empty APIPrefix selects "/api".
func NewGuard(cfg Config) *Guard {
	g := &Guard{
		secure:    cfg.Secure,
		path:      cfg.CookiePath,
		apiPrefix: cfg.APIPrefix,
		rand:      cfg.Rand,
	}
	if g.path == "" {
		g.path = "/"
	}
	if g.apiPrefix == "" {
		g.apiPrefix = "/api"
	}
	if g.rand == nil {
		g.rand = rand.Reader
	}

	paths := cfg.ExemptPaths
	if len(paths) == 0 {
		paths = DefaultExemptPaths
	}
	g.exempt = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		g.exempt[NormalizePath(p, g.apiPrefix)] = struct{}{}
	}
	return g
}

// NormalizePath drops a leading "METHOD " route prefix, collapses repeated
// slashes, drops a trailing slash and strips prefix so that
// "POST /api//auth/login/" and "/auth/login" compare equal.
func NormalizePath(path, prefix string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexByte(path, ' '); i > 0 && isMethodToken(path[:i]) {
		path = strings.TrimSpace(path[i+1:])
	}
	if path == "" {
		return "/"
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var b strings.Builder
	b.Grow(len(path))
	prevSlash := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	path = b.String()

	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if prefix != "" && prefix != "/" {
		prefix = "/" + strings.Trim(prefix, "/")
		if path == prefix {
			return "/"
		}
		if strings.HasPrefix(path, prefix+"/") {
			path = path[len(prefix):]
		}
	}
	return path
}

// IsExempt reports whether path skips validation.
func (g *Guard) IsExempt(path string) bool {
	_, ok := g.exempt[NormalizePath(path, g.apiPrefix)]
	return ok
}

// NewToken returns 32 random bytes, hex encoded.
func (g *Guard) NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Issue mints a token and writes it as the CSRF cookie.
func (g *Guard) Issue(w http.ResponseWriter) (string, error) {
	token, err := g.NewToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, g.cookie(token))
	return token, nil
}

// Protect runs the guard for one request. Safe methods and exempt paths
// pass through and receive a cookie if they lack one. Other requests must
// carry matching cookie and header tokens; on success the token rotates.
func (g *Guard) Protect(w http.ResponseWriter, r *http.Request) (State, error) {
	cookieToken := ""
	if c, err := r.Cookie(CookieName); err == nil {
		cookieToken = c.Value
	}

	if isSafeMethod(r.Method) || g.IsExempt(r.URL.Path) {
		if cookieToken == "" {
			if _, err := g.Issue(w); err != nil {
				return NotValidated, err
			}
		}
		return NotValidated, nil
	}

	headerToken := r.Header.Get(HeaderName)
	if cookieToken == "" || headerToken == "" {
		return NotValidated, ErrTokenMissing
	}
	if len(cookieToken) != len(headerToken) ||
		subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return NotValidated, ErrTokenInvalid
	}

	if _, err := g.Issue(w); err != nil {
		return Validated, err
	}
	return Validated, nil
}

func (g *Guard) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     g.path,
		HttpOnly: false,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func isMethodToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

func isSafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return false
}
