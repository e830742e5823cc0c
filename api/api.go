// Package api exposes the node over HTTP: transaction submission and status,
// and read access to the ledger (accumulator snapshots and paths, anchors and
// spent nullifiers).
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/vocdoni-z-shielded/log"
	"github.com/vocdoni/vocdoni-z-shielded/state"
	stg "github.com/vocdoni/vocdoni-z-shielded/storage"
)

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host    string
	Port    int
	Storage *stg.Storage
	State   *state.State
}

// API type represents the API HTTP server.
type API struct {
	router  *chi.Mux
	storage *stg.Storage
	state   *state.State
	server  *http.Server
	addr    net.Addr
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. Port 0 picks a free port, see Addr.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.State == nil {
		return nil, fmt.Errorf("missing state instance")
	}
	a := &API{
		storage: conf.Storage,
		state:   conf.State,
	}

	// Initialize router
	a.initRouter()
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Host, conf.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("starting API server", "address", a.addr.String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server failed")
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() net.Addr {
	return a.addr
}

// Close shuts the HTTP server down, waiting for active requests until ctx
// is done.
func (a *API) Close(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", TransactionsEndpoint, "method", "POST")
	a.router.Post(TransactionsEndpoint, a.newTransaction)
	log.Infow("register handler", "endpoint", TransactionEndpoint, "method", "GET")
	a.router.Get(TransactionEndpoint, a.transactionStatus)
	log.Infow("register handler", "endpoint", AccumulatorEndpoint, "method", "GET")
	a.router.Get(AccumulatorEndpoint, a.currentSnapshot)
	log.Infow("register handler", "endpoint", PathEndpoint, "method", "GET")
	a.router.Get(PathEndpoint, a.commitmentPath)
	log.Infow("register handler", "endpoint", AnchorEndpoint, "method", "GET")
	a.router.Get(AnchorEndpoint, a.anchor)
	log.Infow("register handler", "endpoint", NullifierEndpoint, "method", "GET")
	a.router.Get(NullifierEndpoint, a.nullifier)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
