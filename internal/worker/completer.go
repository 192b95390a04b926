package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/events"
	"github.com/bidhub/auctions/internal/pkg/distlock"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

const (
	// DefaultCompleteInterval is how often expired auctions are swept.
	DefaultCompleteInterval = 30 * time.Second

	// DefaultBatchSize bounds each completion batch so a large backlog
	// never holds row locks for long.
	DefaultBatchSize = 1000

	completerLockKey = "workers:completer"
	completerLockTTL = 5 * time.Minute
)

// Completer sweeps Live auctions whose end_date passed and marks them
// Completed. A distributed lock keeps a single instance sweeping; row-level
// SKIP LOCKED inside the store makes a concurrent sweep harmless anyway.
type Completer struct {
	store       *auction.Store
	redisClient *redis.Client
	publisher   *events.Publisher // optional
	log         *logger.Logger

	workerID  string
	interval  time.Duration
	batchSize int

	completed int64
	errors    int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewCompleter creates a completer with default interval and batch size.
func NewCompleter(store *auction.Store, redisClient *redis.Client) *Completer {
	hostname, _ := os.Hostname()
	return &Completer{
		store:       store,
		redisClient: redisClient,
		log:         logger.With("completer"),
		workerID:    fmt.Sprintf("completer-%s-%d", hostname, time.Now().UnixNano()%10000),
		interval:    DefaultCompleteInterval,
		batchSize:   DefaultBatchSize,
	}
}

// SetInterval overrides the sweep interval.
func (c *Completer) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// SetBatchSize overrides the completion batch size.
func (c *Completer) SetBatchSize(n int) {
	if n > 0 {
		c.batchSize = n
	}
}

// SetPublisher attaches an event publisher for auction.completed events.
func (c *Completer) SetPublisher(p *events.Publisher) {
	c.publisher = p
}

// Start begins the sweep loop.
func (c *Completer) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("completer already running")
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	c.log.Info("starting", "worker_id", c.workerID, "interval", c.interval.String())
	c.wg.Add(1)
	go c.loop()
	return nil
}

// Stop waits for the current sweep to finish.
func (c *Completer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.log.Info("stopped", "completed", atomic.LoadInt64(&c.completed),
		"errors", atomic.LoadInt64(&c.errors))
}

func (c *Completer) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(c.ctx)
		}
	}
}

// Sweep completes every expired Live auction in bounded batches until none
// remain. Returns how many auctions were completed.
func (c *Completer) Sweep(ctx context.Context) int {
	lock := distlock.NewLock(c.redisClient, c.db(), completerLockKey, completerLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		c.log.Warn("lock acquire failed", "error", err)
		return 0
	}
	if !acquired {
		return 0
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			c.log.Warn("lock release failed", "error", err)
		}
	}()

	total := 0
	for {
		ids, err := c.store.CompleteExpired(ctx, time.Now(), c.batchSize)
		if err != nil {
			atomic.AddInt64(&c.errors, 1)
			c.log.Error("completion batch failed", "error", err)
			return total
		}
		if len(ids) == 0 {
			break
		}
		total += len(ids)
		atomic.AddInt64(&c.completed, int64(len(ids)))
		c.log.Info("completed expired auctions", "count", len(ids))

		for _, id := range ids {
			c.publishCompleted(ctx, id.String())
		}
	}
	return total
}

func (c *Completer) publishCompleted(ctx context.Context, auctionID string) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(ctx, events.EventAuctionCompleted, map[string]string{
		"auction_id": auctionID,
	})
	if err != nil {
		c.log.Warn("auction.completed publish failed", "auction_id", auctionID, "error", err)
	}
}

func (c *Completer) db() *sql.DB {
	return c.store.DB()
}
