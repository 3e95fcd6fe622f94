package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/http/server"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal arrives.
// Returning instead of exiting lets every defer (database first) run.
func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, MessageMapper)
	}

	// 3. Metrics
	metrics := observability.NewMetrics()
	metrics.Register(prometheus.DefaultRegisterer)

	// 4. Storage & services
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	participantRepository := repositories.NewParticipantRepository(db)
	userRepository := repositories.NewUserRepository(db)
	tokenManager := auth.NewTokenManager(config.JWTSecret, config.JWTIssuer)
	authService := services.NewAuthService(userRepository, tokenManager, config.AuthTokenDuration)
	chatService := services.NewChatService(messageRepository, participantRepository, userRepository, logger)

	// 5. Live state
	registry := runtime.NewRegistry(logger, metrics)
	dispatcher := runtime.NewDispatcher(registry, logger, metrics)
	handler := runtime.NewHandler(authService, chatService, chatService, chatService, registry, dispatcher, logger, metrics)
	orchestrator := runtime.NewOrchestrator(logger, workers.NewSupervisor(logger), registry, dispatcher, handler)

	// 6. HTTP
	chat := server.NewChatHandler(logger, orchestrator, sink.WebsocketConfig{
		BufferSize:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		PongWait:       config.PongWait,
		PingPeriod:     config.PingPeriod,
		MaxMessageSize: config.MaxMessageSize,
	})
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           server.NewRouter(logger, chat, registry, prometheus.DefaultGatherer),
		ReadHeaderTimeout: config.WriteTimeout,
		// Sessions end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	orchestrator.Add(
		workers.NewHTTPServerWorker(logger, httpServer, config.ShutdownTimeout),
		workers.NewBadgerGCWorker(logger, db, config.GCInterval, metrics),
		workers.NewProcessStatsWorker(logger, config.StatsInterval, metrics),
	)

	// 7. Run until a signal
	logger.Info("Starting chat relay", "address", config.Address())
	if err = orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

// MessageMapper shows message keys with their author and content in the inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	var message repositories.DiskMessage
	if err := repositories.DecodeMessage(val, &message); err != nil {
		return row
	}
	row.Type = "CHAT"
	row.Detail = fmt.Sprintf("%s: %s", message.Author, message.Content)
	return row
}
