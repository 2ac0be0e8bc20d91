// Package server wires handlers, middleware, and routes, and owns the HTTP
// server lifecycle. This is the composition root: every dependency in the
// app is assembled in New, nothing constructs its own collaborators.
//
// DEPENDENCY FLOW:
//
//	main.go reads config → server.New creates
//	    sqlite.DB → media.Store → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services; nobody below this package knows the
// route table exists.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/civicfix/internal/auth"
	"github.com/sakif/civicfix/internal/handler"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/middleware"
	sqliteRepo "github.com/sakif/civicfix/internal/repository/sqlite"
	"github.com/sakif/civicfix/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port     int
	DBPath   string
	MediaDir string

	JWTSecret string

	// GitHub sign-in is optional; routes register only when the client ID
	// and secret are both set.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	OAuthRedirectURL   string // frontend URL receiving ?token= after OAuth

	CORSOrigins []string
}

// Server owns the router, the database connection, and the media store.
// Close-on-shutdown lives in Start.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency graph and route table.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and the route table.
//
//	GET  /health/                         → liveness probe
//	GET  /reports/   POST /reports/       → list / create
//	GET|PUT|PATCH|DELETE /reports/{id}/   → retrieve / replace / patch / delete
//	POST /seed/                           → demo data (405 on other methods)
//	POST /auth/signup/  POST /auth/login/ → account endpoints
//	GET  /auth/me/                        → bearer-token profile
//	GET  /auth/github/login|callback      → optional OAuth sign-in
//	GET  /media/*                         → stored uploads
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	// Mobile clients send /reports/ with the trailing slash; register
	// without it and normalize here so both spellings work.
	s.router.Use(chimiddleware.StripSlashes)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// The seed endpoint's 405 must be JSON like everything else; chi's
	// default is plain text.
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"detail":"Method not allowed"}`))
	})

	mediaStore, err := media.NewStore(s.config.MediaDir)
	if err != nil {
		return fmt.Errorf("creating media store: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	reportService := service.NewReportService(s.db, mediaStore, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, mediaStore, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	}

	reportHandler := handler.NewReportHandler(reportService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.config.OAuthRedirectURL, s.logger)

	s.router.Get("/health", handler.HandleHealth)

	s.router.Route("/reports", func(r chi.Router) {
		r.Get("/", reportHandler.HandleList)
		r.Post("/", reportHandler.HandleCreate)
		r.Get("/{id}", reportHandler.HandleGetByID)
		r.Put("/{id}", reportHandler.HandleUpdate)
		r.Patch("/{id}", reportHandler.HandlePartialUpdate)
		r.Delete("/{id}", reportHandler.HandleDelete)
	})

	s.router.Post("/seed", reportHandler.HandleSeed)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
		})

		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		} else {
			s.logger.Warn("GitHub sign-in not configured — OAuth routes not registered")
		}
	})

	// Stored uploads. GET /media/reports/x.jpg serves {MediaDir}/reports/x.jpg.
	fileServer := http.FileServer(http.Dir(mediaStore.Root()))
	s.router.Handle("/media/*", http.StripPrefix("/media/", fileServer))

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests (30s), close the
// database so the WAL is flushed and the file lock released.
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
			slog.String("media", s.config.MediaDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the assembled router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
