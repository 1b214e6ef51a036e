// Package server wires the HTTP surface: device identity, catalog and topic
// views, playback session operations, share payloads, and the admin
// endpoints, with the SPA served behind everything else.
package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/carelib/carelib/internal/analytics"
	"github.com/carelib/carelib/internal/catalog"
	"github.com/carelib/carelib/internal/device"
	"github.com/carelib/carelib/internal/httputil"
	"github.com/carelib/carelib/internal/library"
	"github.com/carelib/carelib/internal/playback"
	"github.com/carelib/carelib/internal/progress"
	"github.com/carelib/carelib/internal/ratelimit"
	"github.com/carelib/carelib/internal/share"
	"github.com/carelib/carelib/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Pinger            Pinger
	Loader            *catalog.Loader
	Store             *progress.Store
	Recorder          *analytics.Recorder
	WebFS             fs.FS
	JWTSecret         string
	BaseURL           string
	LiffID            string
	AdminPasswordHash string
	AllowedOrigins    []string
}

type Server struct {
	router        chi.Router
	pinger        Pinger
	deviceHandler *device.Handler
	handler       *library.Handler
	adminHandler  *library.AdminHandler
	webFS         fs.FS
}

func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required; set the environment variable")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	secureCookies := strings.HasPrefix(baseURL, "https://")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogMiddleware)
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.Use(securityHeaders(SecurityConfig{BaseURL: baseURL}))

	s := &Server{
		router:        r,
		pinger:        cfg.Pinger,
		deviceHandler: device.NewHandler(cfg.JWTSecret, secureCookies),
		webFS:         cfg.WebFS,
	}

	links := share.Builder{BaseURL: baseURL, LiffID: cfg.LiffID}
	manager := playback.NewManager(cfg.Store)
	s.handler = library.NewHandler(cfg.Loader, cfg.Store, manager, links)
	if cfg.Recorder != nil {
		s.handler.SetRecorder(cfg.Recorder)
	}
	if cfg.AdminPasswordHash != "" {
		s.adminHandler = library.NewAdminHandler(cfg.AdminPasswordHash, s.handler)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	deviceLimiter := ratelimit.NewLimiter(0.5, 5)
	s.router.With(deviceLimiter.Middleware).Post("/api/device", s.deviceHandler.Issue)

	// Boot-time helpers need no device identity: the shell resolves its
	// deep link and loads the dataset header before it has a token.
	s.router.Get("/api/catalog", s.handler.Catalog)
	s.router.Get("/api/resolve", s.handler.Resolve)
	s.router.Get("/api/share/topic/{key}", s.handler.ShareTopic)
	s.router.Get("/api/share/item/{id}", s.handler.ShareItem)

	sessionLimiter := ratelimit.NewLimiter(5, 20)
	s.router.Group(func(r chi.Router) {
		r.Use(sessionLimiter.Middleware)
		r.Use(s.deviceHandler.Middleware)
		r.Get("/api/topics/{key}/view", s.handler.TopicView)
		r.Get("/api/topics/{key}/continue", s.handler.Continue)
		r.Post("/api/session/topic", s.handler.SelectTopic)
		r.Post("/api/session/open", s.handler.Open)
		r.Post("/api/session/close", s.handler.Close)
		r.Post("/api/session/toggle", s.handler.ToggleWatched)
		r.Post("/api/session/next", s.handler.Next)
		r.Post("/api/session/prev", s.handler.Prev)
	})

	if s.adminHandler != nil {
		adminLimiter := ratelimit.NewLimiter(0.2, 3)
		s.router.Route("/api/admin", func(r chi.Router) {
			r.Use(adminLimiter.Middleware)
			r.Post("/reload", s.adminHandler.Reload)
			r.Get("/analytics", s.adminHandler.Analytics)
		})
	}

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

// corsMiddleware admits the LINE mini-browser origins plus whatever the
// deployment configures; with no configuration only same-origin calls work.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Password"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
