package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kartoza/brb-engine/internal/api"
	"github.com/kartoza/brb-engine/internal/config"
	"github.com/kartoza/brb-engine/internal/store"
)

// Server holds all the components for the inference service
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	ruleStore  *store.Store
}

// New creates a new Server with all components initialized
func New(cfg config.Config) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
	}

	ruleStore, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Printf("Warning: rule store not available: %v", err)
	} else {
		s.ruleStore = ruleStore
	}

	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.ruleStore, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Rule pack management routes
	s.router.HandleFunc("/api/rulepack/status", s.handleRulePackStatus).Methods("GET")
	s.router.HandleFunc("/api/rulepack/install", s.handleRulePackInstall).Methods("POST")
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server listening on http://localhost:%d", s.cfg.Port)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.ruleStore != nil {
		s.ruleStore.Close()
	}

	return s.httpServer.Shutdown(ctx)
}
