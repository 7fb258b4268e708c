package server

import (
	"net/http"
	"time"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/csrf"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/MrEthical07/procureauth/internal/rate"
	"github.com/MrEthical07/procureauth/metrics/export/prometheus"
	"github.com/MrEthical07/procureauth/middleware"
	"github.com/gin-gonic/gin"
)

// APIPrefix is the mount point of every auth route.
const APIPrefix = "/api"

type Config struct {
	Engine *procureauth.Engine
	// Limiter backs route throttling. Nil selects a process-local limiter.
	Limiter rate.Limiter
	Log     *logger.Logger
	// Production marks every cookie Secure.
	Production bool
	// DisableMetrics leaves /metrics unmounted.
	DisableMetrics bool
}

type endpoint struct {
	route  middleware.Route
	handle gin.HandlerFunc
}

func (h *handlers) endpoints() []endpoint {
	return []endpoint{
		{middleware.Route{Name: "auth.login", Method: http.MethodPost, Path: "/auth/login"}.Throttled(10, time.Minute), h.login},
		{middleware.Route{Name: "auth.refresh", Method: http.MethodPost, Path: "/auth/refresh"}.Throttled(30, time.Minute), h.refresh},
		{middleware.Route{Name: "auth.logout", Method: http.MethodPost, Path: "/auth/logout", RequiresCSRF: true}, h.logout},
		{middleware.Route{Name: "auth.check", Method: http.MethodGet, Path: "/auth/check", RequiresAuth: true}, h.check},
		{middleware.Route{Name: "auth.me", Method: http.MethodGet, Path: "/auth/me", RequiresAuth: true, RequiresMFA: true}, h.me},
		{middleware.Route{Name: "mfa.setup", Method: http.MethodGet, Path: "/auth/mfa/setup", RequiresAuth: true, RequiresCSRF: true}, h.mfaSetup},
		{middleware.Route{Name: "mfa.enable", Method: http.MethodPost, Path: "/auth/mfa/enable", RequiresAuth: true, RequiresCSRF: true}, h.mfaEnable},
		{middleware.Route{Name: "mfa.disable", Method: http.MethodPost, Path: "/auth/mfa/disable", RequiresAuth: true, RequiresCSRF: true, RequiresMFA: true}, h.mfaDisable},
		{middleware.Route{Name: "mfa.verify", Method: http.MethodPost, Path: "/auth/mfa/verify", RequiresAuth: true}.Throttled(10, time.Minute), h.mfaVerify},
		{middleware.Route{Name: "mfa.recovery", Method: http.MethodPost, Path: "/auth/mfa/recovery", RequiresAuth: true, RequiresCSRF: true}.Throttled(10, time.Minute), h.mfaRecovery},
		{middleware.Route{Name: "mfa.status", Method: http.MethodGet, Path: "/auth/mfa/status", RequiresAuth: true, RequiresCSRF: true}, h.mfaStatus},
		{middleware.Route{Name: "csrf.token", Method: http.MethodGet, Path: "/csrf/token"}, h.csrfToken},
		{middleware.Route{Name: "health", Method: http.MethodGet, Path: "/health-check"}, h.health},
	}
}

// NewRouter mounts the auth API on a fresh gin engine.
func NewRouter(cfg Config) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("http")
	fail := writeError(log)

	guard := csrf.NewGuard(csrf.Config{Secure: cfg.Production, APIPrefix: APIPrefix})
	pipeline := middleware.NewPipeline(middleware.Config{
		Engine:  cfg.Engine,
		CSRF:    guard,
		Limiter: cfg.Limiter,
		Log:     log,
		Abort:   fail,
	})
	h := &handlers{
		engine:  cfg.Engine,
		csrf:    guard,
		cookies: cookieJar{secure: cfg.Production},
		log:     log,
		fail:    fail,
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(log), middleware.Recovery(log, fail))

	api := r.Group(APIPrefix)
	for _, ep := range h.endpoints() {
		if err := pipeline.Verify(ep.route, APIPrefix+ep.route.Path); err != nil {
			panic(err)
		}
		api.Handle(ep.route.Method, ep.route.Path, pipeline.Handler(ep.route), ep.handle)
	}
	r.GET("/health-check", h.health)
	if !cfg.DisableMetrics {
		r.GET("/metrics", prometheus.NewPrometheusExporter(cfg.Engine).GinHandler())
	}
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return r
}
