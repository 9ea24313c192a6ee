package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sw33tLie/leaguebundle/internal/utils"
	"github.com/sw33tLie/leaguebundle/pkg/forward"
	"github.com/sw33tLie/leaguebundle/pkg/league"
	"github.com/sw33tLie/leaguebundle/pkg/orchestrator"
	"github.com/sw33tLie/leaguebundle/pkg/storage"
)

// Service is what the API exposes. *service.Service implements it.
type Service interface {
	TestConnection(ctx context.Context, leagueID string, season int) (*orchestrator.Connection, error)
	FetchBundle(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
	Sync(ctx context.Context, b *league.Bundle, remote *storage.Remote) (*forward.Result, error)
	State(ctx context.Context) (*storage.Snapshot, error)
	SaveRemote(ctx context.Context, r storage.Remote) error
}

type Server struct {
	Service  Service
	Agent    http.Handler // websocket endpoint for the browser agent; optional
	Username string
	Password string
	// AllowedOrigins for CORS; extension pages are always allowed.
	AllowedOrigins []string
}

func New(svc Service, agent http.Handler, user, pass string) *Server {
	return &Server{
		Service:  svc,
		Agent:    agent,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// The agent authenticates by origin, not basic auth.
	if s.Agent != nil {
		r.Handle("/agent", s.Agent)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.checkOrigin)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   append([]string{"chrome-extension://*", "moz-extension://*"}, s.AllowedOrigins...),
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(s.basicAuth)
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Post("/connection", s.handleConnection)
		r.Post("/bundle", s.handleBundle)
		r.Post("/sync", s.handleSync)
		r.Get("/state", s.handleState)
		r.Put("/state/remote", s.handleSaveRemote)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	utils.Log.Info("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) authEnabled() bool {
	return s.Username != "" || s.Password != ""
}

// checkOrigin refuses browser requests from pages that are not allowed to use
// the API. Requests without an Origin header come from non-browser clients.
func (s *Server) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}
		utils.Log.Warnf("Refused API request from origin %s", origin)
		forbidden(w, "origin not allowed")
	})
}

func (s *Server) originAllowed(origin string) bool {
	if strings.HasPrefix(origin, "chrome-extension://") || strings.HasPrefix(origin, "moz-extension://") {
		return true
	}
	for _, o := range s.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
