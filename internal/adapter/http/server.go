package http

import (
	"net/http"
	"time"

	"github.com/bnema/mediafetch/internal/adapter/http/middleware"
	"github.com/bnema/mediafetch/internal/adapter/http/ratelimit"
	"github.com/bnema/mediafetch/internal/service"
)

const (
	submitWindow = time.Minute
	submitBlock  = 5 * time.Minute
)

type Options struct {
	Version        string
	TargetLanguage string
	// SubmitLimit is the number of downloads one client may start per minute.
	SubmitLimit int
	// Secret signs CSRF tokens.
	Secret string
}

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	identity   IdentityService
	limiter    *ratelimit.SubmitLimiter
	handler    http.Handler
}

func NewServer(jobs JobService, credentials CredentialService, identity IdentityService, eventBus *service.EventBus, opts Options) *Server {
	mux := http.NewServeMux()

	limiter := ratelimit.NewSubmitLimiter(
		opts.SubmitLimit,
		submitWindow,
		submitBlock,
	)

	s := &Server{
		mux:        mux,
		handlers:   NewHandlers(jobs, credentials, limiter, opts.Version, opts.TargetLanguage),
		sseHandler: NewSSEHandler(eventBus, jobs),
		identity:   identity,
		limiter:    limiter,
	}

	s.registerRoutes()
	csrf := middleware.NewCSRFProtection(opts.Secret)
	s.handler = middleware.SecurityHeaders(csrf.Middleware(s.mux))

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handlers.Health())

	s.mux.Handle("GET /{$}", s.withClient(s.handlers.Index()))

	s.mux.Handle("POST /api/info", s.withClient(s.handlers.Info()))
	s.mux.Handle("POST /api/download", s.withClient(s.handlers.Download()))
	s.mux.Handle("GET /api/progress/{id}", s.withClient(s.sseHandler.Events()))
	s.mux.Handle("GET /api/job/{id}", s.withClient(s.handlers.Job()))
	s.mux.Handle("GET /api/history", s.withClient(s.handlers.History()))

	s.mux.Handle("GET /api/file/{id}", s.withClient(s.handlers.File(service.ArtifactBest)))
	s.mux.Handle("GET /api/file/{id}/original", s.withClient(s.handlers.File(service.ArtifactOriginal)))
	s.mux.Handle("GET /api/file/{id}/burned", s.withClient(s.handlers.File(service.ArtifactBurned)))

	s.mux.HandleFunc("GET /api/cookies/pool", s.handlers.CookiePool())
	s.mux.HandleFunc("POST /api/cookies/upload", s.handlers.UploadCookie())
	s.mux.HandleFunc("POST /api/cookies/check_all", s.handlers.CheckAllCookies())
	s.mux.HandleFunc("POST /api/cookies/{id}/check", s.handlers.CheckCookie())
	s.mux.HandleFunc("DELETE /api/cookies/{id}", s.handlers.DeleteCookie())
	s.mux.HandleFunc("DELETE /api/cookies", s.handlers.DeleteAllCookies())
}

func (s *Server) withClient(h http.HandlerFunc) http.Handler {
	return IdentityMiddleware(s.identity, h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases background resources. It does not stop an http.Server
// serving s.
func (s *Server) Close() {
	s.limiter.Close()
}
