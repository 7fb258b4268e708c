package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	csrfCookie = "csrf_token"
	csrfHeader = "X-CSRF-Token"
	mfaHeader  = "X-MFA-Token"

	defaultTimeout = 15 * time.Second
)

// Option configures an AuthContext.
type Option func(*AuthContext)

// WithHTTPClient replaces the transport client. Its Jar is replaced by the
// context's own jar.
func WithHTTPClient(c *http.Client) Option {
	return func(a *AuthContext) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithLogger logs retries and refreshes at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(a *AuthContext) {
		a.log = l
	}
}

// AuthContext is one browser-like session against the auth API. It holds
// the cookie jar and the MFA-verified token. Tokens stay in cookies and are
// never exposed to the caller.
type AuthContext struct {
	base       *url.URL
	httpClient *http.Client
	log        zerolog.Logger

	mu       sync.Mutex
	user     *User
	mfaToken string
	closed   bool
}

// New creates a session against baseURL, the mount point of the API such
// as "https://erp.example.com/api".
func New(baseURL string, opts ...Option) (*AuthContext, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", baseURL)
	}

	a := &AuthContext{
		base:       base,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	hc := *a.httpClient
	hc.Jar = jar
	a.httpClient = &hc
	return a, nil
}

// User is the account the session belongs to.
type User struct {
	ID        string `json:"id"`
	LoginID   string `json:"loginId"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

// CurrentUser returns the user of the last successful login, refresh or
// check.
func (a *AuthContext) CurrentUser() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// IsAuthenticated reports whether a user is known to the session.
func (a *AuthContext) IsAuthenticated() bool {
	return a.CurrentUser() != nil
}

// SetMFAToken sets the token sent in X-MFA-Token. MFAVerify and
// MFARecovery call it on success.
func (a *AuthContext) SetMFAToken(token string) {
	a.mu.Lock()
	a.mfaToken = token
	a.mu.Unlock()
}

// Close forgets the user and the MFA token. Every later call returns
// ErrClosed; the cookies die with the context.
func (a *AuthContext) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.user = nil
	a.mfaToken = ""
}

func (a *AuthContext) setUser(u *User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *AuthContext) endpoint(path string) *url.URL {
	return a.base.JoinPath(path)
}

// csrfToken reads the CSRF cookie from the jar.
func (a *AuthContext) csrfToken() string {
	for _, c := range a.httpClient.Jar.Cookies(a.endpoint("/")) {
		if c.Name == csrfCookie {
			return c.Value
		}
	}
	return ""
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one API request. A 401 triggers one refresh and one retry.
// A CSRF rejection triggers one token fetch and one retry.
func (a *AuthContext) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = raw
	}

	refreshed, csrfRetried := false, false
	for {
		err := a.send(ctx, method, path, body, out)
		apiErr, ok := err.(*APIError)
		if !ok {
			return err
		}

		switch {
		case apiErr.csrfRejected() && !csrfRetried:
			csrfRetried = true
			a.log.Debug().Str("path", path).Str("code", apiErr.Code).Msg("csrf token rejected, refetching")
			if ferr := a.FetchCSRF(ctx); ferr != nil {
				return apiErr
			}
		case apiErr.sessionExpired() && !refreshed && !isSessionRoute(path):
			refreshed = true
			a.log.Debug().Str("path", path).Str("code", apiErr.Code).Msg("session rejected, refreshing")
			if _, rerr := a.Refresh(ctx); rerr != nil {
				return apiErr
			}
		default:
			return apiErr
		}
	}
}

func isSessionRoute(path string) bool {
	switch path {
	case "/auth/login", "/auth/refresh", "/auth/logout":
		return true
	}
	return false
}

func (a *AuthContext) send(ctx context.Context, method, path string, body []byte, out any) error {
	a.mu.Lock()
	closed, mfaToken := a.closed, a.mfaToken
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.endpoint(path).String(), r)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := a.csrfToken(); token != "" {
			req.Header.Set(csrfHeader, token)
		}
	}
	if mfaToken != "" {
		req.Header.Set(mfaHeader, mfaToken)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: CodeInternal, Message: http.StatusText(resp.StatusCode)}
	}
	if env.Error != nil || env.Status != "success" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: CodeInternal, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode %s: %w", path, err)
		}
	}
	return nil
}
