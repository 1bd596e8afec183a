// Package server wires the application together: database, identity
// provider, services, handlers, routes, and graceful shutdown. It is the
// composition root; nothing else constructs cross-layer dependencies.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/codelove/codelove/internal/auth"
	"github.com/codelove/codelove/internal/handler"
	"github.com/codelove/codelove/internal/identity"
	"github.com/codelove/codelove/internal/middleware"
	sqliteRepo "github.com/codelove/codelove/internal/repository/sqlite"
	"github.com/codelove/codelove/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port   int
	DBPath string

	// SessionSecret signs dev-provider session tokens. Required when the
	// dev provider is active (no IdentityAPIKey).
	SessionSecret string

	// Hosted identity provider. When IdentityAPIKey is empty the in-process
	// dev provider is used instead.
	IdentityAPIURL string
	IdentityAPIKey string

	// Google social sign-in. The routes are only registered when both
	// client credentials are present.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Server owns the router and the resources that must be released on
// shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	return s, nil
}

// newProvider picks the identity provider implementation. With an API key
// the hosted provider is used; otherwise the in-process dev provider, which
// logs verification codes instead of emailing them.
func (s *Server) newProvider() (identity.Provider, error) {
	if s.config.IdentityAPIKey != "" {
		return identity.NewHTTPProvider(s.config.IdentityAPIURL, s.config.IdentityAPIKey), nil
	}

	secret := s.config.SessionSecret
	if secret == "" {
		// Ephemeral secret: sessions will not survive a restart.
		secret = randomSecret()
		s.logger.Warn("SESSION_SECRET not set, generated an ephemeral one")
	}
	tokens, err := identity.NewTokenService(secret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	s.logger.Warn("no identity API key configured, using in-process dev provider")
	return identity.NewDevProvider(tokens, s.logger), nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("server: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	provider, err := s.newProvider()
	if err != nil {
		return err
	}

	policy := service.DefaultHandlePolicy()
	accountService := service.NewAccountService(s.db.Users(), provider, policy, s.logger)
	availabilityService := service.NewAvailabilityService(s.db.Users(), provider, policy, s.logger)
	profileService := service.NewProfileService(s.db.Users(), s.db.Submissions(), s.db.Problems(), s.logger)
	catalogService := service.NewCatalogService(s.db.Problems(), s.logger)

	var google *identity.GoogleProvider
	if s.config.GoogleClientID != "" && s.config.GoogleClientSecret != "" {
		google = identity.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	}

	accountHandler := handler.NewAccountHandler(accountService, availabilityService, s.logger)
	sessionHandler := handler.NewSessionHandler(google, provider, accountService, s.logger)
	profileHandler := handler.NewProfileHandler(profileService, accountService, s.logger)
	problemHandler := handler.NewProblemHandler(catalogService, s.logger)

	if google != nil {
		s.router.Route("/auth/google", func(r chi.Router) {
			r.Get("/login", sessionHandler.HandleGoogleLogin)
			r.Get("/callback", sessionHandler.HandleGoogleCallback)
		})
	} else {
		s.logger.Warn("Google credentials not configured, social sign-in routes disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		// Public routes. OptionalSession lets reconcile see a signed-in
		// caller without blocking anonymous ones.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalSession(provider, s.logger))
			r.Get("/handle-availability", accountHandler.HandleAvailability)
			r.Post("/register", accountHandler.HandleRegister)
			r.Post("/register/verify", accountHandler.HandleVerify)
			r.Post("/session/reconcile", sessionHandler.HandleReconcile)
			r.Post("/logout", sessionHandler.HandleLogout)
			r.Get("/problems", problemHandler.HandleList)
			r.Get("/problems/{slug}", problemHandler.HandleGet)
			r.Get("/u/{handle}", profileHandler.HandleProfile)
			r.Get("/u/{handle}/submissions", profileHandler.HandleSubmissions)
		})

		// Routes that require a signed-in user.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(provider, s.logger))
			r.Get("/me", sessionHandler.HandleMe)
			r.Post("/submissions", profileHandler.HandleCreateSubmission)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server: graceful shutdown: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
