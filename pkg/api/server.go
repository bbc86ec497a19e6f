package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/api/handlers"
	"github.com/cbodonnell/pyramid/pkg/api/middleware"
	authhandlers "github.com/cbodonnell/pyramid/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/pyramid/pkg/auth/providers"
	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/network"
	"github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/cbodonnell/pyramid/pkg/version"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port          int
	TLS           *TLSConfig
	AllowOrigin   string
	AuthProvider  authproviders.AuthProvider
	Gateway       *game.Gateway
	ClientManager *network.ClientManager
	// Repository serves the run archive. Optional.
	Repository repositories.Repository
	// AuthHandler mounts the sign-in proxy under /auth. Optional.
	AuthHandler authhandlers.AuthHandler
	// ExposeVariants mounts the puzzle variant route, which includes answers.
	// Only for development servers.
	ExposeVariants bool
}

// NewAPIServer creates a new http.Server for the room API
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// NewRouter builds the route table of the API.
func NewRouter(opts NewAPIServerOptions) http.Handler {
	allowOrigin := opts.AllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	gw := opts.Gateway
	cm := opts.ClientManager

	router := mux.NewRouter()
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	if opts.AuthHandler != nil {
		auth := router.PathPrefix("/auth").Subrouter()
		auth.HandleFunc("/register", opts.AuthHandler.HandleRegister()).Methods(http.MethodPost)
		auth.HandleFunc("/login", opts.AuthHandler.HandleLogin()).Methods(http.MethodPost)
		auth.HandleFunc("/refresh", opts.AuthHandler.HandleRefresh()).Methods(http.MethodPost)
	}

	rooms := router.PathPrefix("/rooms").Subrouter()
	rooms.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
	rooms.HandleFunc("", handlers.HandleCreateRoom(gw)).Methods(http.MethodPost)
	rooms.HandleFunc("/join", handlers.HandleJoinRoom(gw)).Methods(http.MethodPost)

	room := rooms.PathPrefix("/{roomID}").Subrouter()
	room.HandleFunc("", handlers.HandleSnapshot(gw)).Methods(http.MethodGet)
	room.HandleFunc("/air", handlers.HandleAirSeconds(gw)).Methods(http.MethodGet)
	room.HandleFunc("/air", handlers.HandleIncrementAir(gw)).Methods(http.MethodPost)
	room.HandleFunc("/barriers/{step}", handlers.HandleBarrierStatus(gw)).Methods(http.MethodGet)
	room.HandleFunc("/barriers/{step}/required", handlers.HandleSetRequiredReady(gw)).Methods(http.MethodPost)
	room.HandleFunc("/barriers/{step}/ready", handlers.HandleMarkReady(gw)).Methods(http.MethodPost)
	room.HandleFunc("/presence", handlers.HandlePresence(gw, cm)).Methods(http.MethodGet)
	room.HandleFunc("/signal", handlers.HandleSignal(gw, cm)).Methods(http.MethodGet)
	room.HandleFunc("/init", handlers.HandleInitRoomEntities(gw)).Methods(http.MethodPost)
	room.HandleFunc("/start", handlers.HandleStartRoom(gw)).Methods(http.MethodPost)
	room.HandleFunc("/lessons/{puzzle}", handlers.HandleMarkLessonRead(gw)).Methods(http.MethodPost)
	room.HandleFunc("/puzzles/{puzzle}/solve", handlers.HandleSolvePuzzle(gw)).Methods(http.MethodPost)
	room.HandleFunc("/artifacts/{key}", handlers.HandleGrantArtifact(gw)).Methods(http.MethodPost)
	room.HandleFunc("/doors/{key}/open", handlers.HandleOpenDoor(gw)).Methods(http.MethodPost)
	room.HandleFunc("/final", handlers.HandlePerformFinal(gw)).Methods(http.MethodPost)
	if opts.ExposeVariants {
		room.HandleFunc("/variants/{puzzle}", handlers.HandleVariant(gw)).Methods(http.MethodGet)
	}

	if opts.Repository != nil {
		runs := router.PathPrefix("/runs").Subrouter()
		runs.Use(middleware.NewAuthMiddleware(opts.AuthProvider))
		runs.HandleFunc("", handlers.HandleListRuns(opts.Repository)).Methods(http.MethodGet)
		runs.HandleFunc("/{roomID}", handlers.HandleGetRun(opts.Repository)).Methods(http.MethodGet)
	}

	return middleware.NewCORSMiddleware(allowOrigin)(router)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "{\"status\":\"ok\",\"version\":%q}\n", version.Get())
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
