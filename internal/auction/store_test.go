package auction

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewStore(db), mock, func() { db.Close() }
}

func TestGetAuctionNotFound(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM auctions a").
		WillReturnError(sql.ErrNoRows)

	a, err := store.GetAuction(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetAuction() error: %v", err)
	}
	if a != nil {
		t.Error("missing auction should return nil, nil")
	}
}

func TestSetStatus(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectExec("UPDATE auctions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	moved, err := store.SetStatus(context.Background(), id, StatusLive, StatusCanceled)
	if err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if !moved {
		t.Error("expected transition to apply")
	}

	// Auction not in the expected status: zero rows touched.
	mock.ExpectExec("UPDATE auctions SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err = store.SetStatus(context.Background(), id, StatusLive, StatusCanceled)
	if err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}
	if moved {
		t.Error("transition from a wrong status should not apply")
	}
}

func TestDeleteAuctionDraftIsHard(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM auctions WHERE id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteAuction(context.Background(), uuid.New(), StatusDraft); err != nil {
		t.Fatalf("DeleteAuction(draft) error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("draft delete should issue a DELETE: %v", err)
	}
}

func TestDeleteAuctionLiveIsSoft(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE auctions SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.DeleteAuction(context.Background(), uuid.New(), StatusLive); err != nil {
		t.Fatalf("DeleteAuction(live) error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("non-draft delete should issue an UPDATE: %v", err)
	}
}

func TestCompleteExpired(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id1, id2 := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id1).AddRow(id2))
	mock.ExpectExec("UPDATE auctions SET status = 'Completed'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ids, err := store.CompleteExpired(context.Background(), time.Now(), 100)
	if err != nil {
		t.Fatalf("CompleteExpired() error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("completed %d auctions, want 2", len(ids))
	}
}

func TestCompleteExpiredEmptyBatch(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	ids, err := store.CompleteExpired(context.Background(), time.Now(), 100)
	if err != nil {
		t.Fatalf("CompleteExpired() error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected an empty batch, got %d", len(ids))
	}
}

func TestCreateBookmarkDuplicate(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookmarks").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.CreateBookmark(context.Background(), &Bookmark{
		UserID:    uuid.New(),
		AuctionID: uuid.New(),
	})
	if err != ErrDuplicateBookmark {
		t.Errorf("err = %v, want ErrDuplicateBookmark", err)
	}
}

func TestCreateBookmarkReturnsCount(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookmarks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE auction_statistics").
		WillReturnRows(sqlmock.NewRows([]string{"bookmarks_count"}).AddRow(4))
	mock.ExpectCommit()

	count, err := store.CreateBookmark(context.Background(), &Bookmark{
		UserID:    uuid.New(),
		AuctionID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("CreateBookmark() error: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestDeleteBookmarkNeverGoesNegative(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM bookmarks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE auction_statistics").
		WillReturnRows(sqlmock.NewRows([]string{"bookmarks_count"}).AddRow(0))
	mock.ExpectCommit()

	count, err := store.DeleteBookmark(context.Background(), &Bookmark{
		ID:        uuid.New(),
		AuctionID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("DeleteBookmark() error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestMarkAuctions(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	userID := uuid.New()
	bookmarked := &Auction{ID: uuid.New()}
	bidOn := &Auction{ID: uuid.New()}
	untouched := &Auction{ID: uuid.New()}

	mock.ExpectQuery("SELECT auction_id FROM bookmarks").
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"auction_id"}).AddRow(bookmarked.ID))
	mock.ExpectQuery("SELECT auction_id, COUNT").
		WithArgs(userID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"auction_id", "count"}).AddRow(bidOn.ID, 2))

	err := store.MarkAuctions(context.Background(), userID, []*Auction{bookmarked, bidOn, untouched})
	if err != nil {
		t.Fatalf("MarkAuctions() error: %v", err)
	}
	if !*bookmarked.Bookmarked || *bookmarked.MyBidsCount != 0 {
		t.Errorf("bookmarked auction markers = %v/%d", *bookmarked.Bookmarked, *bookmarked.MyBidsCount)
	}
	if *bidOn.Bookmarked || *bidOn.MyBidsCount != 2 {
		t.Errorf("bid-on auction markers = %v/%d", *bidOn.Bookmarked, *bidOn.MyBidsCount)
	}
	if untouched.Bookmarked == nil || *untouched.Bookmarked || *untouched.MyBidsCount != 0 {
		t.Error("untouched auction should carry explicit false/zero markers")
	}
}

func TestMarkAuctionsEmpty(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()

	if err := store.MarkAuctions(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("MarkAuctions() error: %v", err)
	}
}

func TestListBookmarksCarriesWinner(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	userID := uuid.New()
	winnerID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookmarks b`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT b.id, b.user_id, b.created_at").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{
			"bookmark_id", "user_id", "bookmark_created_at",
			"id", "author", "auction_name", "description", "name", "category_id",
			"start_date", "end_date", "max_price", "quantity", "accepted_bidders",
			"accepted_locations", "status", "currency", "custom_fields", "winner",
			"winner_bid_amount", "condition", "created_at", "updated_at",
			"views_count", "total_bids_count", "bookmarks_count", "top_bid", "top_bid_author",
		}).AddRow(
			uuid.New(), userID, now,
			uuid.New(), uuid.New(), "Office chairs", "Thirty chairs", "Furniture", 19,
			now.Add(-48*time.Hour), now.Add(-time.Hour), "1500.00", 30, "Both",
			"My Location", "Completed", "GEL", nil, winnerID,
			"900.00", "New", now.Add(-72*time.Hour), now,
			5, 3, 1, "900.00", winnerID,
		))

	bookmarks, total, err := store.ListBookmarks(context.Background(), userID, ListFilter{})
	if err != nil {
		t.Fatalf("ListBookmarks() error: %v", err)
	}
	if total != 1 || len(bookmarks) != 1 {
		t.Fatalf("total = %d, len = %d", total, len(bookmarks))
	}
	a := bookmarks[0].Auction
	if a.Winner == nil || *a.Winner != winnerID {
		t.Errorf("winner = %v, want %s", a.Winner, winnerID)
	}
	if a.WinnerBidAmount == nil || *a.WinnerBidAmount != "900.00" {
		t.Errorf("winner_bid_amount = %v, want 900.00", a.WinnerBidAmount)
	}
}

func TestResolveTagsUnknownName(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, name FROM tags").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Vintage"))

	_, err := store.ResolveTags(context.Background(), []string{"Vintage", "NoSuchTag"})
	if err == nil {
		t.Error("unknown tag should fail resolution")
	}
}

func TestPurgeUserAuctions(t *testing.T) {
	store, mock, cleanup := setupTestDB(t)
	defer cleanup()

	userID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE auctions SET status = 'Deleted'").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM auctions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.PurgeUserAuctions(context.Background(), userID); err != nil {
		t.Fatalf("PurgeUserAuctions() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
