package main

import (
	"context"
	"database/sql"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/config"
	"github.com/bidhub/auctions/internal/pkg/dbwait"
	"github.com/bidhub/auctions/internal/pkg/logger"
	"github.com/bidhub/auctions/internal/seed"
)

func main() {
	authorFlag := flag.String("author", "", "auction author uuid (random when empty)")
	seedFlag := flag.Int64("seed", 0, "random seed (time-based when zero)")
	flag.Parse()

	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.With("seed")

	author := uuid.New()
	if *authorFlag != "" {
		author, err = uuid.Parse(*authorFlag)
		if err != nil {
			log.Error("invalid author uuid", "value", *authorFlag)
			os.Exit(1)
		}
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := dbwait.Wait(ctx, db, cfg.Database.WaitAttempts, cfg.Database.WaitInterval); err != nil {
		log.Error("database wait failed", "error", err)
		os.Exit(2)
	}

	source := *seedFlag
	if source == 0 {
		source = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(source))

	seeder := seed.NewSeeder(auction.NewStore(db), rng)
	if err := seeder.Run(ctx, author); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
	log.Info("done", "auctions", seed.AuctionCount, "author", author)
}
