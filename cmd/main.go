package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dm-gateway/auth"
	"dm-gateway/moderation"
	"dm-gateway/repositories"
	"dm-gateway/runtime"
	"dm-gateway/runtime/workers"
	"dm-gateway/services"
	"dm-gateway/transport"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/nats-io/nats.go"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the gateway lifecycle, and
// centralizes error reporting, so every defer (database close, NATS drain)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Storage & identity
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)
	issuer := auth.NewTokenIssuer(config.JWTSecret, config.TokenDuration)

	var censor *moderation.Censor
	if len(config.CensoredWords) > 0 {
		censor, err = moderation.New(config.CensoredWords, firstRune(config.CensoredChar, '*'))
		if err != nil {
			return fmt.Errorf("moderation setup failed: %w", err)
		}
	}

	// 4. Live-connection runtime
	registry := runtime.NewRegistry()
	presence := runtime.NewPresenceManager(log, registry, userRepository, config.DeliveryTimeout)
	fanout := runtime.NewFanoutEngine(log, registry, messageRepository, censor, config.DeliveryTimeout)
	gateway := runtime.NewConnectionGateway(log, issuer, userRepository, registry, presence)

	chatService := services.NewChatService(log, fanout, messageRepository)
	authService := services.NewAuthService(userRepository, issuer)
	directoryService := services.NewDirectoryService(userRepository)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. NATS transport
	nc, err := nats.Connect(config.NatsURL,
		nats.Name("dm-gateway"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("NATS connection failed: %w", err)
	}
	defer nc.Close()
	log.Info("Connected to NATS", "url", nc.ConnectedUrl())

	server := transport.NewServer(log, nc, gateway, registry, chatService,
		authService, directoryService, config.ConnectionBufferSize)
	if err = server.Start(ctx); err != nil {
		return fmt.Errorf("transport start failed: %w", err)
	}

	// 7. Background workers under supervision
	supervisor := workers.NewSupervisor(log)
	supervisor.Add(
		workers.NewSessionReaper(log, registry, server, config.ReapInterval, config.SessionTimeout),
		workers.NewHeartbeatWorker(log, nc, registry, config.HeartbeatSubject, config.HeartbeatInterval),
	)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	log.Info("Gateway ready", "at", time.Now().UTC())

	// 8. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 9. Final Cleanup
	server.Close()
	supervisor.Stop()
	<-supervisorDone
	_ = nc.Drain()
	log.Info("Program stopped cleanly")

	return nil
}

func firstRune(s string, fallback rune) rune {
	for _, r := range s {
		return r
	}
	return fallback
}
