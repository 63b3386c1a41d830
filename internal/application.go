package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/battleship-backend/internal/config"
	"github.com/rocketscienceinc/battleship-backend/internal/game"
	"github.com/rocketscienceinc/battleship-backend/internal/registry"
	"github.com/rocketscienceinc/battleship-backend/internal/repository"
	"github.com/rocketscienceinc/battleship-backend/internal/repository/storage"
	"github.com/rocketscienceinc/battleship-backend/internal/server"
	"github.com/rocketscienceinc/battleship-backend/internal/service"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - wires the layers together and runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisClient, err := storage.NewRedisClient(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis: %w", err)
	}

	defer func() {
		if err = redisClient.Close(); err != nil {
			log.Error("could not close redis client", "error", err)
		}
	}()

	userRepo := repository.NewUserRepository(redisClient)
	tokenRepo := repository.NewTokenRepository(redisClient)
	sessionRepo := repository.NewSessionRepository(logger, redisClient)
	chatRepo := repository.NewChatRepository(redisClient)

	authService := service.NewAuthService(logger, userRepo, tokenRepo, conf.Auth.TokenTTL())
	ratingService := service.NewRatingService(logger, userRepo)

	gameStore := game.NewStore(logger, sessionRepo, ratingService,
		conf.Game.TurnLimit(), conf.Game.TurnWarning(), conf.Game.AllowTouchingShips)

	matchQueue := registry.NewMatchQueue(logger, conf.Matchmaking.QueueCapacity, conf.Matchmaking.RatingTolerance)
	challenges := registry.NewChallengeRegistry(logger, conf.Challenge.Capacity, conf.Challenge.Expiry())
	connections := registry.NewConnectionRegistry(logger, userRepo, matchQueue, conf.Connection.RegistryCapacity)

	gameServer := server.New(logger, server.Options{
		HandshakeTimeout:  conf.Connection.HandshakeTimeout(),
		IdleTimeout:       conf.Connection.IdleTimeout(),
		WriteTimeout:      conf.Connection.WriteTimeout(),
		MessagesPerSecond: conf.Connection.MessagesPerSecond,
		MessageBurst:      conf.Connection.MessageBurst,
	}, authService, userRepo, chatRepo, connections, matchQueue, challenges, gameStore)

	// background monitors
	go gameStore.Run(ctx)
	go challenges.Run(ctx, conf.Challenge.SweepInterval())

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting game server", "port", conf.SocketPort)
		if srvErr := gameServer.Start(ctx, conf.SocketPort); srvErr != nil {
			log.Error("game server error", "error", srvErr)
			errCh <- srvErr
		}
	}()

	select {
	case err = <-errCh:
		return fmt.Errorf("game server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
