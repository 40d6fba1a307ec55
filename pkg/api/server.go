// Package api exposes the document vault over HTTP: authentication,
// directory tree navigation, file transfer, and the administrative
// surfaces for users, groups and proposals. Handlers authenticate via
// bearer tokens, pull the principal from the request context, and route
// every permission question through the access resolver.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/docvault/pkg/access"
	"github.com/platinummonkey/docvault/pkg/auth"
	"github.com/platinummonkey/docvault/pkg/blob"
	"github.com/platinummonkey/docvault/pkg/observability"
	"github.com/platinummonkey/docvault/pkg/store"
)

// Options configures a Server.
type Options struct {
	Store          *store.Store
	Blobs          blob.Store
	Tokens         *auth.TokenManager
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Health         *observability.HealthChecker
	MaxUploadBytes int64
}

// Server is the HTTP API server.
type Server struct {
	store    *store.Store
	resolver *access.Resolver
	blobs    blob.Store
	tokens   *auth.TokenManager
	logger   *observability.Logger
	metrics  *observability.Metrics
	health   *observability.HealthChecker
	router   *mux.Router

	maxUploadBytes int64
}

// NewServer creates the API server and wires all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		store:          opts.Store,
		resolver:       access.NewResolver(opts.Store),
		blobs:          opts.Blobs,
		tokens:         opts.Tokens,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		health:         opts.Health,
		router:         mux.NewRouter(),
		maxUploadBytes: opts.MaxUploadBytes,
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = 50 << 20
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware, s.recoveryMiddleware, s.observeMiddleware)

	// Unauthenticated surface
	s.router.HandleFunc("/register", s.register).Methods("POST")
	s.router.HandleFunc("/login", s.login).Methods("POST")
	if s.health != nil {
		s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	}
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// Everything else requires a bearer token
	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	// Session and profile
	authed.HandleFunc("/logout", s.logout).Methods("POST")
	authed.HandleFunc("/me", s.me).Methods("GET")
	authed.HandleFunc("/change-password", s.changePassword).Methods("PUT")
	authed.HandleFunc("/profile", s.updateProfile).Methods("PUT")

	// Directories
	authed.HandleFunc("/directories/tree", s.directoryTree).Methods("GET")
	authed.HandleFunc("/directories", s.listDirectories).Methods("GET")
	authed.HandleFunc("/directories", s.createDirectory).Methods("POST")
	authed.HandleFunc("/directories/{id}", s.getDirectory).Methods("GET")
	authed.HandleFunc("/directories/{id}", s.updateDirectory).Methods("PUT")
	authed.HandleFunc("/directories/{id}", s.deleteDirectory).Methods("DELETE")

	// Files
	authed.HandleFunc("/files", s.listFiles).Methods("GET")
	authed.HandleFunc("/files", s.uploadFile).Methods("POST")
	authed.HandleFunc("/files/{id}", s.getFile).Methods("GET")
	authed.HandleFunc("/files/{id}", s.renameFile).Methods("PUT")
	authed.HandleFunc("/files/{id}", s.deleteFile).Methods("DELETE")
	authed.HandleFunc("/files/{id}/download", s.downloadFile).Methods("GET")

	// Users
	authed.HandleFunc("/users", s.listUsers).Methods("GET")
	authed.HandleFunc("/users", s.createUser).Methods("POST")
	authed.HandleFunc("/users/{id}", s.getUser).Methods("GET")
	authed.HandleFunc("/users/{id}", s.updateUser).Methods("PUT")
	authed.HandleFunc("/users/{id}", s.deleteUser).Methods("DELETE")
	authed.HandleFunc("/users/{id}/approve", s.approveUser).Methods("POST")
	authed.HandleFunc("/users/{id}/reject", s.rejectUser).Methods("POST")
	authed.HandleFunc("/users/{id}/reset-password", s.resetUserPassword).Methods("POST")

	// Groups
	authed.HandleFunc("/groups", s.listGroups).Methods("GET")
	authed.HandleFunc("/groups", s.createGroup).Methods("POST")
	authed.HandleFunc("/groups/{id}", s.getGroup).Methods("GET")
	authed.HandleFunc("/groups/{id}", s.updateGroup).Methods("PUT")
	authed.HandleFunc("/groups/{id}", s.deleteGroup).Methods("DELETE")
	authed.HandleFunc("/groups/{id}/users/{userId}", s.addGroupMember).Methods("POST")
	authed.HandleFunc("/groups/{id}/users/{userId}", s.removeGroupMember).Methods("DELETE")

	// Proposals
	authed.HandleFunc("/proposals", s.listProposals).Methods("GET")
	authed.HandleFunc("/proposals", s.createProposal).Methods("POST")
	authed.HandleFunc("/proposals/{id}", s.getProposal).Methods("GET")
	authed.HandleFunc("/proposals/{id}", s.updateProposal).Methods("PUT")
	authed.HandleFunc("/proposals/{id}", s.deleteProposal).Methods("DELETE")
	authed.HandleFunc("/proposals/{id}/permissions", s.listProposalPermissions).Methods("GET")
	authed.HandleFunc("/proposals/{id}/permissions", s.addProposalPermission).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
