package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/pyramid/pkg/api"
	authhandlers "github.com/cbodonnell/pyramid/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/pyramid/pkg/auth/providers"
	"github.com/cbodonnell/pyramid/pkg/config"
	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/network"
	"github.com/cbodonnell/pyramid/pkg/puzzles"
	"github.com/cbodonnell/pyramid/pkg/queue"
	"github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/cbodonnell/pyramid/pkg/state"
	"github.com/cbodonnell/pyramid/pkg/version"
	"github.com/cbodonnell/pyramid/pkg/workers"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	allowOrigin := flag.String("allow-origin", "*", "allowed CORS origin")
	migrations := flag.String("migrations", "./migrations/sqlite", "SQLite migrations directory")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting pyramid server version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var authProvider authproviders.AuthProvider
	var authHandler authhandlers.AuthHandler
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		authProvider, err = authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       cfg.FirebaseProjectID,
			APIKey:          cfg.FirebaseAPIKey,
			CredentialsFile: cfg.FirebaseCredentialsFile,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to create Firebase auth provider: %v", err))
		}
		if cfg.FirebaseAPIKey != "" {
			authHandler = authhandlers.NewFirebaseAuthHandler(authhandlers.NewFirebaseAuthHandlerOptions{APIKey: cfg.FirebaseAPIKey})
		}
	case config.AuthModeInsecure:
		log.Warn("Insecure auth mode: bearer tokens are trusted as user IDs")
		authProvider = authproviders.NewInsecureAuthProvider()
	}

	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL, *migrations)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	graph, err := game.DefaultProgressionGraph()
	if err != nil {
		panic(fmt.Sprintf("Failed to load progression graph: %v", err))
	}

	store := state.NewInMemorySessionStore(state.NewInMemorySessionStoreOptions{})
	clientManager := network.NewClientManager()
	roomEventQueue := queue.NewInMemoryQueue(10000)

	archiveRunChannelSize := 100
	archiveRunChan := make(chan workers.ArchiveRunRequest, archiveRunChannelSize)
	archiveWorker := workers.NewArchiveWorker(workers.NewArchiveWorkerOptions{
		Repository:     repository,
		ArchiveRunChan: archiveRunChan,
	})
	go archiveWorker.Start(ctx)

	broadcastWorker := workers.NewBroadcastWorker(workers.NewBroadcastWorkerOptions{
		EventQueue:  roomEventQueue,
		Broadcaster: clientManager,
		Interval:    cfg.BroadcastInterval,
	})
	go broadcastWorker.Start(ctx)

	collectorWorker := workers.NewCollectorWorker(workers.NewCollectorWorkerOptions{
		Store:    store,
		Closer:   clientManager,
		Interval: cfg.CollectorInterval,
		Timeout:  cfg.RoomTimeout,
	})
	go collectorWorker.Start(ctx)

	gateway := game.NewGateway(game.NewGatewayOptions{
		Store:              store,
		Graph:              graph,
		Checker:            puzzles.NewCatalog(),
		EventQueue:         roomEventQueue,
		ArchiveChan:        archiveRunChan,
		AirInitialSeconds:  cfg.AirInitialSeconds,
		RitualPollAttempts: cfg.RitualPollAttempts,
		RitualPollInterval: cfg.RitualPollInterval,
	})

	apiServerOpts := api.NewAPIServerOptions{
		Port:           *port,
		AllowOrigin:    *allowOrigin,
		AuthProvider:   authProvider,
		Gateway:        gateway,
		ClientManager:  clientManager,
		Repository:     repository,
		AuthHandler:    authHandler,
		// puzzle answers are served only to development servers
		ExposeVariants: cfg.AuthMode == config.AuthModeInsecure,
	}
	if cfg.TLSEnabled() {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}
