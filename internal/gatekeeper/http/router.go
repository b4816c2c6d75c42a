// Package http wires the gateway's handlers onto a ServeMux with
// per-endpoint rate limits and the shared middleware chain.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/openagri/gatekeeper/internal/gatekeeper/service"
	"github.com/openagri/gatekeeper/internal/gatekeeper/store"
	"github.com/openagri/gatekeeper/pkg/httpx"
	"github.com/openagri/gatekeeper/pkg/jwtx"
	"github.com/openagri/gatekeeper/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Credentials *service.CredentialService
	Tokens      *service.TokenService
	Fanout      *service.FanoutService
	Registry    *service.RegistryService
}

func NewRouter(
	codec jwtx.Codec,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerDiscovery()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware
// chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /login - strict limit by IP, it carries credentials.
	loginHandler := &LoginHandler{
		Credentials: r.Credentials,
		Tokens:      r.Tokens,
		Fanout:      r.Fanout,
	}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate limit; a legitimate client refreshes at
	// most once per access-token lifetime.
	refreshHandler := &RefreshHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /validate - lenient limit; downstream services call this on
	// every request they serve.
	validateHandler := &ValidateHandler{Tokens: r.Tokens}
	r.Mux.Handle("POST /v1/auth/validate",
		httpx.Chain(validateHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /logout - moderate limit.
	logoutHandler := &LogoutHandler{Tokens: r.Tokens, Fanout: r.Fanout}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerDiscovery() {
	// GET /services - the public service directory.
	servicesHandler := &ServicesHandler{Registry: r.Registry}
	r.Mux.Handle("GET /v1/services",
		httpx.Chain(servicesHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /jwks.json - empty set under HS256, real keys under EdDSA.
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.codec),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
