package stubserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/tutor-client/internal/api"
	"github.com/ashureev/tutor-client/internal/identity"
	"github.com/ashureev/tutor-client/internal/middleware"
)

// Options configures a Server.
type Options struct {
	Addr           string
	ThinkingTime   time.Duration
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the loopback tutor backend.
type Server struct {
	tutor  *Tutor
	sm     *SessionManager
	router chi.Router
	addr   string
	logger *slog.Logger
}

// New builds a server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		tutor:  NewTutor(),
		sm:     NewSessionManager(opts.Logger),
		addr:   opts.Addr,
		logger: opts.Logger,
	}
	ws := NewWebSocketHandler(s.tutor, s.sm, opts.ThinkingTime, opts.Logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "Tutor stub is running"})
	})

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)
		r.Get("/api/conversations/{userID}", s.handleConversations)
		r.Get("/api/analytics/{userID}", s.handleAnalytics)
		r.Get("/ws/tutor/{userID}", ws.ServeHTTP)
	})

	s.router = r
	return s
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tutor exposes the in-memory backend state.
func (s *Server) Tutor() *Tutor {
	return s.tutor
}

// Sessions exposes the live socket registry.
func (s *Server) Sessions() *SessionManager {
	return s.sm
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	api.JSON(w, http.StatusOK, api.ConversationsResponse{Conversations: s.tutor.Conversations(userID)})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	api.JSON(w, http.StatusOK, s.tutor.Analytics(userID))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// WebSockets are long-lived, so there is no write timeout.
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Stub server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down stub server...")
	s.sm.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Stub server stopped")
	return nil
}
