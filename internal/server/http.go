// Package server assembles the HTTP API: public submitter routes, the
// authenticated staff surface, and the middleware stack around both.
package server

import (
	"database/sql"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	accessgatehandler "compliance-portal/backend/internal/accessgate/handler"
	accessgatesvc "compliance-portal/backend/internal/accessgate/service"
	healthhandler "compliance-portal/backend/internal/health/handler"
	identityhandler "compliance-portal/backend/internal/identity/handler"
	identitysvc "compliance-portal/backend/internal/identity/service"
	orghandler "compliance-portal/backend/internal/organization/handler"
	orgrepo "compliance-portal/backend/internal/organization/repository"
	"compliance-portal/backend/internal/otpecho"
	requesthandler "compliance-portal/backend/internal/request/handler"
	requestsvc "compliance-portal/backend/internal/request/service"
	"compliance-portal/backend/internal/security"
	"compliance-portal/backend/internal/server/middleware"
	"compliance-portal/backend/internal/tokenvault"
)

// Deps carries everything the HTTP server needs. All fields are required
// unless noted.
type Deps struct {
	Tokens        *security.TokenProvider
	Gate          *accessgatesvc.Service
	Requests      *requestsvc.Service
	Auth          *identitysvc.Service
	Vault         *tokenvault.Vault
	Orgs          orgrepo.Repository
	Echo          otpecho.Store // nil unless test-mode echo is enabled
	DB            *sql.DB       // health checks; may be nil in tests
	Tracer        trace.Tracer  // nil disables tracing
	PortalBaseURL string
}

// NewHandler builds the full route tree: public routes at the root, staff
// routes behind JWT auth under /api/staff and /api/auth.
func NewHandler(deps Deps) http.Handler {
	staffMux := http.NewServeMux()
	requesthandler.New(deps.Requests).Register(staffMux)
	orghandler.New(deps.Vault, deps.Orgs, deps.PortalBaseURL).Register(staffMux)

	mux := http.NewServeMux()
	accessgatehandler.New(deps.Gate, deps.Echo).Register(mux)
	identityhandler.New(deps.Auth).Register(mux)
	var pinger healthhandler.Pinger
	if deps.DB != nil {
		pinger = deps.DB
	}
	healthhandler.New(pinger).Register(mux)
	mux.Handle("/api/staff/", middleware.StaffAuth(deps.Tokens)(staffMux))

	var root http.Handler = mux
	if deps.Tracer != nil {
		root = middleware.Trace(deps.Tracer)(root)
	}
	return root
}

// NewHTTPServer wraps the route tree in an http.Server with conservative
// timeouts. The caller owns ListenAndServe and Shutdown.
func NewHTTPServer(addr string, deps Deps) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
