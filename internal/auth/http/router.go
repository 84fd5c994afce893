package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpgate/internal/auth/service"
	"github.com/aussiebroadwan/otpgate/internal/auth/store"
	"github.com/aussiebroadwan/otpgate/pkg/httpx"
	"github.com/aussiebroadwan/otpgate/pkg/jwtx"
	"github.com/aussiebroadwan/otpgate/pkg/slogx"

	_ "github.com/aussiebroadwan/otpgate/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RateLimits are the per-route request budgets.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// DefaultRateLimits reads the env-overridable profiles from httpx.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
		Public:   httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet // nil unless tokens are EdDSA signed
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	AuthService  *service.AuthService
	AdminService *service.AdminService
	AdminPolicy  *service.AdminPolicy

	Cookie CookieConfig
	Limits RateLimits

	// Diagnostics adds expiresAt/serverTime to OTP errors. Off in production.
	Diagnostics bool
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Cookie:       CookieConfig{Name: RefreshCookieName, Path: "/"},
		Limits:       DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			otpgate Authentication Service API
//	@version		0.1.0
//	@description	Email and password login confirmed by an emailed one-time passcode.
//	@description
//	@description				Access tokens are short lived bearer JWTs. Refresh tokens travel only in the http-only refreshToken cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/otpgate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) responder() responder {
	return responder{diagnostics: r.Diagnostics}
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		Cookie:      r.Cookie,
		responder:   r.responder(),
	}

	// Credential and OTP submission - strict limit per IP and email
	strict := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"))
	}

	r.Mux.Handle("POST /login", strict(h.HandleLogin))
	r.Mux.Handle("POST /resend-otp", strict(h.HandleResendOTP))
	r.Mux.Handle("POST /verify-otp", strict(h.HandleVerifyOTP))
	r.Mux.Handle("POST /register", strict(h.HandleRegister))
	r.Mux.Handle("POST /forgot-password", strict(h.HandleForgotPassword))
	r.Mux.Handle("POST /reset-password", strict(h.HandleResetPassword))

	r.Mux.Handle("POST /refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		AuthService: r.AuthService,
		AdminPolicy: r.AdminPolicy,
		responder:   r.responder(),
	}

	r.Mux.Handle("GET /protected",
		httpx.Chain(http.HandlerFunc(h.HandleProtected),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyScope(service.ScopeReadProtected),
			httpx.RateLimitByUser(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("PATCH /profile",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateProfile),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Moderate),
		),
	)
	r.Mux.Handle("POST /change-password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.Limits.Strict),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		AdminService: r.AdminService,
		responder:    r.responder(),
	}

	admin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.verifier),
			RequireAdmin(r.AdminPolicy),
			httpx.RateLimitByUser(r.Limits.Moderate),
		)
	}

	r.Mux.Handle("GET /admin/users", admin(h.HandleListUsers))
	r.Mux.Handle("GET /admin/otps", admin(h.HandleListOTPs))
	r.Mux.Handle("GET /admin/overview", admin(h.HandleOverview))
	r.Mux.Handle("POST /admin/otps/revoke", admin(h.HandleRevokeOTP))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)

	if r.keys != nil {
		r.Mux.Handle("GET /.well-known/jwks.json",
			httpx.Chain(JWKSHandler(r.keys),
				httpx.RateLimitByIP(r.Limits.Public),
			),
		)
	}
}
