package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/bid"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

const (
	// DefaultRevokeQueue is the Redis list the API pushes canceled auction
	// ids onto.
	DefaultRevokeQueue = "auctions:revoke"

	// revokeBatchSize bounds how many bids each revocation pass touches.
	revokeBatchSize = 500

	popTimeout = 5 * time.Second
)

// Revoker drains canceled auction ids from a Redis list and revokes their
// open bids in cursor-ordered batches.
type Revoker struct {
	auctions    *auction.Store
	bids        *bid.Store
	redisClient *redis.Client
	log         *logger.Logger

	queue     string
	batchSize int

	revoked int64
	errors  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewRevoker creates a revoker reading from the given Redis list.
func NewRevoker(auctions *auction.Store, bids *bid.Store, redisClient *redis.Client, queue string) *Revoker {
	if queue == "" {
		queue = DefaultRevokeQueue
	}
	return &Revoker{
		auctions:    auctions,
		bids:        bids,
		redisClient: redisClient,
		log:         logger.With("revoker"),
		queue:       queue,
		batchSize:   revokeBatchSize,
	}
}

// Start begins draining the queue.
func (rv *Revoker) Start() error {
	rv.mu.Lock()
	if rv.running {
		rv.mu.Unlock()
		return fmt.Errorf("revoker already running")
	}
	rv.running = true
	rv.ctx, rv.cancel = context.WithCancel(context.Background())
	rv.mu.Unlock()

	rv.log.Info("starting", "queue", rv.queue)
	rv.wg.Add(1)
	go rv.loop()
	return nil
}

// Stop waits for the in-flight revocation to finish.
func (rv *Revoker) Stop() {
	rv.mu.Lock()
	if !rv.running {
		rv.mu.Unlock()
		return
	}
	rv.running = false
	rv.mu.Unlock()

	rv.cancel()
	rv.wg.Wait()
	rv.log.Info("stopped", "revoked", atomic.LoadInt64(&rv.revoked),
		"errors", atomic.LoadInt64(&rv.errors))
}

func (rv *Revoker) loop() {
	defer rv.wg.Done()

	for {
		select {
		case <-rv.ctx.Done():
			return
		default:
		}

		res, err := rv.redisClient.BRPop(rv.ctx, popTimeout, rv.queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if rv.ctx.Err() != nil {
				return
			}
			atomic.AddInt64(&rv.errors, 1)
			rv.log.Warn("queue pop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		rv.ProcessAuction(rv.ctx, res[1])
	}
}

// ProcessAuction revokes all open bids on one canceled auction. Returns the
// number of revoked bids.
func (rv *Revoker) ProcessAuction(ctx context.Context, rawID string) int64 {
	auctionID, err := uuid.Parse(rawID)
	if err != nil {
		rv.log.Warn("discarding malformed auction id", "value", rawID)
		return 0
	}

	a, err := rv.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		atomic.AddInt64(&rv.errors, 1)
		rv.log.Error("auction lookup failed", "auction_id", auctionID, "error", err)
		return 0
	}
	if a == nil || a.Status != auction.StatusCanceled {
		// Stale or bogus entry, nothing to revoke.
		return 0
	}

	var total int64
	cursor := time.Time{}
	for {
		n, next, err := rv.bids.RevokeBatch(ctx, auctionID, cursor, rv.batchSize)
		if err != nil {
			atomic.AddInt64(&rv.errors, 1)
			rv.log.Error("revoke batch failed", "auction_id", auctionID, "error", err)
			return total
		}
		if n == 0 {
			break
		}
		total += n
		cursor = next
	}

	atomic.AddInt64(&rv.revoked, total)
	rv.log.Info("revoked bids", "auction_id", auctionID, "count", total)
	return total
}
