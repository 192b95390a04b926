package worker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/auction"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestCompleterStartStop(t *testing.T) {
	db, _, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	c := NewCompleter(auction.NewStore(db), redisClient)
	c.SetInterval(time.Hour) // never ticks during the test

	if err := c.Start(); err != nil {
		t.Errorf("Start() error: %v", err)
	}
	if err := c.Start(); err == nil {
		t.Error("double Start() should return an error")
	}
	c.Stop()

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running {
		t.Error("completer should not be running after Stop()")
	}
}

func TestCompleterSweepLoopsUntilEmpty(t *testing.T) {
	db, mock, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	// First batch completes two auctions, second batch is empty.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()).AddRow(uuid.New()))
	mock.ExpectExec("UPDATE auctions SET status = 'Completed'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	c := NewCompleter(auction.NewStore(db), redisClient)
	c.SetBatchSize(2)

	total := c.Sweep(context.Background())
	if total != 2 {
		t.Errorf("Sweep() completed %d auctions, want 2", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCompleterSweepSkipsWhenLockHeld(t *testing.T) {
	db, mock, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	// Another instance holds the lock.
	if err := redisClient.Set(context.Background(), "lock:"+completerLockKey, "other", time.Minute).Err(); err != nil {
		t.Fatalf("failed to seed lock: %v", err)
	}

	c := NewCompleter(auction.NewStore(db), redisClient)
	if total := c.Sweep(context.Background()); total != 0 {
		t.Errorf("Sweep() = %d, want 0 while the lock is held", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("held lock must prevent any queries: %v", err)
	}
}
