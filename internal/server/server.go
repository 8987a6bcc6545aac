// Package server provides the HTTP server setup for go-pdfstamper.
//
// NewServer creates and configures the HTTP server, session manager, and file directories.
//
// Expected outputs:
// - Server listens on the configured address (default :8080)
// - Expired sessions and their files are cleaned up periodically
//
// Usage:
//
//	cfg, _ := config.Load(os.Args[1:])
//	server := server.NewServer(cfg)
//	server.ListenAndServe()
//
// See internal/server/routes.go for route registration.
package server

import (
	"log"
	"net/http"
	"time"

	"go-pdfstamper/internal/config"
	"go-pdfstamper/internal/session"
)

type Server struct {
	Config         *config.Config
	SessionManager *session.SessionManager
}

func NewServer(cfg *config.Config) *http.Server {
	if err := cfg.EnsureDirs(); err != nil {
		log.Printf("Error creating directories: %v", err)
	}

	srv := &Server{
		Config:         cfg,
		SessionManager: session.NewSessionManager(),
	}

	// Cleanup goroutine for expired sessions/files
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := srv.SessionManager.CleanupExpired(cfg.SessionTTL); n > 0 {
				log.Printf("Removed %d expired sessions", n)
			}
		}
	}()

	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
