// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the database, sandbox, service, and handlers
// are all wired together here, in one place, rather than scattered across
// the codebase. main.go only decides configuration and which sandbox runner
// to use; everything downstream of that is assembled in New.
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

	"github.com/rahin/codelab/internal/handler"
	"github.com/rahin/codelab/internal/middleware"
	sqliteRepo "github.com/rahin/codelab/internal/repository/sqlite"
	"github.com/rahin/codelab/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string
}

// Server owns the router and the resources that must be released on
// shutdown (currently the database connection).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → ExecutionService (with the sandbox) → ExecuteHandler → routes
//
// Each layer only receives what it needs: the service gets the repository
// interface and the sandbox executor, the handler gets the service, and
// nothing below the handler ever sees HTTP.
func New(cfg Config, logger *slog.Logger, sb service.Executor) (*Server, error) {
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

	s.setupRoutes(sb)

	return s, nil
}

// setupRoutes configures middleware and route handlers.
//
// Middleware executes in the order it is added:
// RequestID → RealIP → Recoverer → request logging.
func (s *Server) setupRoutes(sb service.Executor) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	executionService := service.NewExecutionService(sb, s.db, s.logger)
	executeHandler := handler.NewExecuteHandler(executionService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/executions", executeHandler.HandleListExecutions)
		r.Get("/executions/{id}", executeHandler.HandleGetExecution)
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests time to
// finish, and close the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		// Submissions may legitimately run for up to the maximum time
		// limit, so the write timeout has to outlast it.
		WriteTimeout: time.Duration(service.MaxTimeLimitSeconds+30) * time.Second,
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
