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

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/bid"
	"github.com/bidhub/auctions/internal/config"
	"github.com/bidhub/auctions/internal/events"
	"github.com/bidhub/auctions/internal/pkg/dbwait"
	"github.com/bidhub/auctions/internal/pkg/logger"
	"github.com/bidhub/auctions/internal/worker"
)

const exitDBUnreachable = 2

func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.With("worker")

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
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

	auctions := auction.NewStore(db)
	bids := bid.NewStore(db)

	completer := worker.NewCompleter(auctions, redisClient)
	completer.SetInterval(cfg.Worker.CompleteInterval)
	completer.SetBatchSize(cfg.Worker.BatchSize)

	if cfg.RabbitMQ.Enabled {
		publisher := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		defer publisher.Close()
		completer.SetPublisher(publisher)

		subscriber := events.NewSubscriber(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
		subscriber.RegisterHandler(events.EventUserDeleted, events.NewUserDeletedHandler(auctions))
		go func() {
			if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("event subscriber stopped", "error", err)
			}
		}()
	}

	revoker := worker.NewRevoker(auctions, bids, redisClient, cfg.Worker.RevokeQueue)

	if err := completer.Start(); err != nil {
		log.Error("failed to start completer", "error", err)
		os.Exit(1)
	}
	if err := revoker.Start(); err != nil {
		log.Error("failed to start revoker", "error", err)
		os.Exit(1)
	}
	log.Info("workers running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())

	cancel()
	revoker.Stop()
	completer.Stop()
	log.Info("stopped")
}
