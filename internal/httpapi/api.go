package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/chat"
	"claimdesk.org/internal/claims"
	"claimdesk.org/internal/obs"
	"claimdesk.org/internal/stream"
)

const serviceName = "claimdesk-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the services the HTTP surface is built on. Chat and Stream are
// optional.
type Deps struct {
	Accounts *accounts.Service
	Claims   *claims.Service
	Guard    *auth.Guard
	Chat     *chat.Client
	Stream   *stream.Stream
	Ready    readinessChecker
}

// Option configures API.
type Option func(*API)

func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

func WithStaticDir(dir string) Option {
	return func(a *API) { a.staticDir = dir }
}

func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// WithTrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For
// header names the real client. Without it the TCP peer is the client.
func WithTrustedProxies(proxies []string) Option {
	return func(a *API) { a.proxyList = proxies }
}

// WithRateLimit sets the per-IP bucket on login, register and chat.
func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	accounts *accounts.Service
	claims   *claims.Service
	guard    *auth.Guard
	chat     *chat.Client
	stream   *stream.Stream
	ready    readinessChecker

	version    string
	staticDir  string
	origins    []string
	proxyList  []string
	trusted    trustedProxies
	maxBody    int64
	rateBurst  int
	ratePerSec float64
}

func New(deps Deps, opts ...Option) (*API, error) {
	if deps.Accounts == nil || deps.Claims == nil || deps.Guard == nil {
		return nil, errors.New("httpapi: accounts, claims and guard are required")
	}
	a := &API{
		accounts:   deps.Accounts,
		claims:     deps.Claims,
		guard:      deps.Guard,
		chat:       deps.Chat,
		stream:     deps.Stream,
		ready:      deps.Ready,
		version:    "dev",
		maxBody:    defaultMaxBody,
		rateBurst:  10,
		ratePerSec: 1,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	for _, opt := range opts {
		opt(a)
	}
	trusted, err := parseTrustedProxies(a.proxyList)
	if err != nil {
		return nil, fmt.Errorf("httpapi: %w", err)
	}
	a.trusted = trusted
	a.router = a.routes()
	return a, nil
}

func (a *API) routes() chi.Router {
	limit := rateLimitMiddleware(newIPLimiter(a.rateBurst, a.ratePerSec))

	r := chi.NewRouter()
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)

		r.Get("/info", a.Info)
		r.With(limit).Post("/login", a.login)
		r.With(limit).Post("/register", a.register)
		r.With(limit).Post("/chat", a.chatMessage)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.With(a.requireRoles(auth.Staff)).Get("/admin/stats", a.accountStats)
			r.Group(func(r chi.Router) {
				r.Use(a.requireRoles(auth.ITOnly))
				r.Get("/admin/users", a.listUsers)
				r.Get("/admin/users/{id}", a.getUser)
				r.Put("/admin/users/{id}", a.updateUser)
				r.Delete("/admin/users/{id}", a.deleteUser)
			})

			r.Group(func(r chi.Router) {
				r.Use(a.requireRoles(auth.ClientOnly))
				r.Post("/client/submit", a.submitClaim)
				r.Get("/client/my-claims", a.myClaims)
				r.Get("/client/stats", a.clientStats)
			})

			r.Group(func(r chi.Router) {
				r.Use(a.requireRoles(auth.AdminOnly))
				r.Get("/admin2/claims", a.listClaims)
				r.Get("/admin2/claim-stats", a.claimStats)
				r.Put("/admin2/claims/{id}/{action}", a.transitionClaim)
			})
		})

		// EventSource cannot set headers, so the token may ride in the query.
		r.With(a.authenticateQuery, a.requireRoles(auth.AdminOnly)).Get("/admin2/claims/events", a.claimEvents)
	})

	r.NotFound(a.static)
	r.MethodNotAllowed(methodNotAllowed)
	return r
}

// Handler wraps the router with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(a.origins)(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = realIP(a.trusted)(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     serviceName,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"version":  a.version,
		"workflow": a.claims.Workflow().Name(),
		"chat":     a.chat.Configured(),
	})
}
