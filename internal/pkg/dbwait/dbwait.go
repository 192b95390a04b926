// Package dbwait blocks process startup until the database answers pings,
// with a bounded number of attempts so a dead database fails the process
// instead of hanging it forever.
package dbwait

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bidhub/auctions/internal/pkg/logger"
)

// Wait pings db up to attempts times, sleeping interval between tries. It
// returns nil as soon as one ping succeeds and the last ping error once the
// attempts are exhausted.
func Wait(ctx context.Context, db *sql.DB, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	log := logger.With("dbwait")

	var lastErr error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		lastErr = db.PingContext(pingCtx)
		cancel()
		if lastErr == nil {
			if i > 1 {
				log.Info("database is up", "attempts", i)
			}
			return nil
		}

		log.Warn("database not ready", "attempt", i, "of", attempts, "error", lastErr)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}
