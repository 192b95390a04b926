package worker

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/bid"
)

func TestRevokerMalformedID(t *testing.T) {
	db, mock, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	rv := NewRevoker(auction.NewStore(db), bid.NewStore(db), redisClient, "")
	if n := rv.ProcessAuction(context.Background(), "not-a-uuid"); n != 0 {
		t.Errorf("ProcessAuction() = %d, want 0", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("malformed id must not hit the database: %v", err)
	}
}

func TestRevokerSkipsNonCanceledAuction(t *testing.T) {
	db, mock, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM auctions a").
		WillReturnRows(auctionRow(id, "Live"))
	mock.ExpectQuery("SELECT t.name FROM tags t").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	rv := NewRevoker(auction.NewStore(db), bid.NewStore(db), redisClient, "")
	if n := rv.ProcessAuction(context.Background(), id.String()); n != 0 {
		t.Errorf("ProcessAuction() = %d, want 0 for a live auction", n)
	}
}

func TestRevokerRevokesCanceledAuction(t *testing.T) {
	db, mock, dbCleanup := setupTestDB(t)
	defer dbCleanup()
	redisClient, redisCleanup := setupTestRedis(t)
	defer redisCleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM auctions a").
		WillReturnRows(auctionRow(id, "Canceled"))
	// Tag lookup for the loaded auction.
	mock.ExpectQuery("SELECT t.name FROM tags t").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	// One batch of two bids, then a drained batch.
	t1 := time.Now().Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, created_at FROM bids").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(uuid.New(), t1).
			AddRow(uuid.New(), t1.Add(time.Minute)))
	mock.ExpectExec("UPDATE bids SET status = 'Revoked'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, created_at FROM bids").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectCommit()

	rv := NewRevoker(auction.NewStore(db), bid.NewStore(db), redisClient, "")
	if n := rv.ProcessAuction(context.Background(), id.String()); n != 2 {
		t.Errorf("ProcessAuction() = %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// auctionRow builds a full auction row in the column order of the store's
// auction queries.
func auctionRow(id uuid.UUID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "author", "auction_name", "description", "name", "category_id",
		"start_date", "end_date", "max_price", "quantity", "accepted_bidders",
		"accepted_locations", "status", "currency", "custom_fields", "winner",
		"winner_bid_amount", "condition", "created_at", "updated_at",
		"views_count", "total_bids_count", "bookmarks_count", "top_bid", "top_bid_author",
	}).AddRow(
		id, uuid.New(), "Office chairs", "", "Furniture", 1,
		now.Add(-24*time.Hour), now.Add(-time.Hour), "500.00", 1, "Both",
		"My Location", status, "GEL", nil, nil,
		nil, "New", now.Add(-48*time.Hour), now,
		0, 2, 0, nil, nil,
	)
}
