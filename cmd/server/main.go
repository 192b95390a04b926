package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/api"
	"github.com/bidhub/auctions/internal/auth"
	"github.com/bidhub/auctions/internal/config"
	"github.com/bidhub/auctions/internal/events"
	"github.com/bidhub/auctions/internal/live"
	"github.com/bidhub/auctions/internal/pkg/dbwait"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

// exitDBUnreachable distinguishes a dead database from other startup
// failures so orchestration can tell them apart.
const exitDBUnreachable = 2

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.With("server")

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbwait.Wait(ctx, db, cfg.Database.WaitAttempts, cfg.Database.WaitInterval); err != nil {
		log.Error("database wait failed", "error", err)
		os.Exit(exitDBUnreachable)
	}
	log.Info("connected to database", "host", cfg.Database.Host)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	blacklist := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.BlacklistDB,
	})
	defer blacklist.Close()

	verifier, err := auth.NewVerifier(cfg.Auth.RSAPublicKey, blacklist)
	if err != nil {
		log.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}

	hub := live.NewHub(redisClient)
	go hub.Run(ctx)

	var publisher *events.Publisher
	if cfg.RabbitMQ.Enabled {
		publisher = events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		defer publisher.Close()
	}

	handlers := api.NewHandlers(db, redisClient, hub, publisher, cfg.Worker.RevokeQueue)
	server := api.NewServer(handlers, verifier)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr())
		errCh <- server.ListenAndServe(cfg.Server.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
