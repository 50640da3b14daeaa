// Package web serves the read-only HTTP query API over resolved donor
// identity state.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/normalize"
	"github.com/ncboe-donors/internal/store"
	"github.com/ncboe-donors/internal/web/handlers"
	"github.com/ncboe-donors/internal/web/middleware"
)

// Server represents the query API server
type Server struct {
	config     *Config
	st         store.Store
	log        zerolog.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new query API server over an already-open store.
func NewServer(config *Config, st store.Store, log zerolog.Logger) *Server {
	server := &Server{
		config: config,
		st:     st,
		log:    log,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	merger := identity.NewMerger(s.st, s.log)

	apiHandler := &handlers.APIHandler{Store: s.st}
	identityHandler := &handlers.IdentityHandler{Store: s.st, Merger: merger}
	searchHandler := &handlers.SearchHandler{Store: s.st, Parser: normalize.NewNameParser()}
	householdHandler := &handlers.HouseholdHandler{Store: s.st}
	mergeHandler := &handlers.MergeHandler{Store: s.st, Merger: merger}

	api := s.router.PathPrefix("/api").Subrouter()

	// Identity endpoints
	api.HandleFunc("/identities", identityHandler.ListIdentities).Methods("GET")
	api.HandleFunc("/identities/{id}", identityHandler.GetIdentity).Methods("GET")
	api.HandleFunc("/identities/{id}/donations", identityHandler.GetDonations).Methods("GET")
	api.HandleFunc("/identities/{id}/current", mergeHandler.GetCurrentID).Methods("GET")

	// Search endpoints
	api.HandleFunc("/search/alias", searchHandler.SearchAlias).Methods("GET")
	api.HandleFunc("/search/identity", searchHandler.SearchIdentity).Methods("GET")

	// Merge log
	api.HandleFunc("/merges", mergeHandler.ListMerges).Methods("GET")

	// Household endpoints
	api.HandleFunc("/households", householdHandler.ListHouseholds).Methods("GET")
	api.HandleFunc("/households/{key}", householdHandler.GetHousehold).Methods("GET")
	api.HandleFunc("/spouses", householdHandler.ListSpousePairs).Methods("GET")

	// Statistics
	api.HandleFunc("/stats", apiHandler.GetStats).Methods("GET")

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.log))

	if s.config.Auth.Enabled {
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Start runs the server until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting query API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("server error")
		}
	}()

	<-stop
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}
