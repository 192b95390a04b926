package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store provides database operations for auctions, bookmarks and the fixed
// category/tag taxonomy.
type Store struct {
	db *sql.DB
}

// NewStore creates a new auction store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for stores that share a transaction.
func (s *Store) DB() *sql.DB { return s.db }

// ErrTagInUse is returned when deleting a tag still referenced by auctions.
var ErrTagInUse = errors.New("tag is referenced by existing auctions")

const auctionColumns = `a.id, a.author, a.auction_name, a.description, c.name, a.category_id,
	a.start_date, a.end_date, a.max_price, a.quantity, a.accepted_bidders,
	a.accepted_locations, a.status, a.currency, a.custom_fields, a.winner,
	a.winner_bid_amount, a.condition, a.created_at, a.updated_at,
	st.views_count, st.total_bids_count, st.bookmarks_count, st.top_bid, st.top_bid_author`

const auctionFrom = ` FROM auctions a
	JOIN categories c ON c.id = a.category_id
	JOIN auction_statistics st ON st.auction_id = a.id`

func scanAuction(row interface{ Scan(...interface{}) error }) (*Auction, error) {
	a := &Auction{Statistics: &Statistics{}}
	var customFields []byte
	var winner, topBidAuthor uuid.NullUUID
	var winnerAmount, topBid sql.NullString
	err := row.Scan(
		&a.ID, &a.Author, &a.AuctionName, &a.Description, &a.Category, &a.CategoryID,
		&a.StartDate, &a.EndDate, &a.MaxPrice, &a.Quantity, &a.AcceptedBidders,
		&a.AcceptedLocations, &a.Status, &a.Currency, &customFields, &winner,
		&winnerAmount, &a.Condition, &a.CreatedAt, &a.UpdatedAt,
		&a.Statistics.ViewsCount, &a.Statistics.TotalBidsCount,
		&a.Statistics.BookmarksCount, &topBid, &topBidAuthor,
	)
	if err != nil {
		return nil, err
	}
	a.CustomFields = customFields
	if winner.Valid {
		a.Winner = &winner.UUID
	}
	if winnerAmount.Valid {
		a.WinnerBidAmount = &winnerAmount.String
	}
	if topBid.Valid {
		a.Statistics.TopBid = &topBid.String
	}
	if topBidAuthor.Valid {
		a.Statistics.TopBidAuthor = &topBidAuthor.UUID
	}
	return a, nil
}

// ResolveCategory returns the id of a category by its exact name.
func (s *Store) ResolveCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("unknown category %q", name)
	}
	return id, err
}

// ResolveTags returns the ids of the given tag names, failing on any unknown name.
func (s *Store) ResolveTags(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM tags WHERE name = ANY($1)`, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]int64, len(names))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		found[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := found[n]
		if !ok {
			return nil, fmt.Errorf("unknown tag %q", n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateAuction inserts the auction, its statistics row and its tag links in
// one transaction. The caller has already resolved CategoryID and validated
// the choice fields.
func (s *Store) CreateAuction(ctx context.Context, a *Auction, tagIDs []int64) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO auctions (id, author, auction_name, description,
		category_id, start_date, end_date, max_price, quantity, accepted_bidders,
		accepted_locations, status, currency, custom_fields, condition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.Author, a.AuctionName, a.Description, a.CategoryID, a.StartDate,
		a.EndDate, a.MaxPrice, a.Quantity, a.AcceptedBidders, a.AcceptedLocations,
		a.Status, a.Currency, []byte(a.CustomFields), a.Condition, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auction_statistics (auction_id) VALUES ($1)`, a.ID)
	if err != nil {
		return err
	}

	for _, tagID := range tagIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO auction_tags (auction_id, tag_id) VALUES ($1, $2)`, a.ID, tagID)
		if err != nil {
			return err
		}
	}

	if a.Statistics == nil {
		a.Statistics = &Statistics{}
	}
	return tx.Commit()
}

// GetAuction retrieves an auction with its category, statistics and tags.
// Returns nil, nil when no row exists.
func (s *Store) GetAuction(ctx context.Context, id uuid.UUID) (*Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+auctionFrom+` WHERE a.id = $1`, id)
	a, err := scanAuction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a.Tags, err = s.auctionTags(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) auctionTags(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.name FROM tags t
		JOIN auction_tags at ON at.tag_id = t.id
		WHERE at.auction_id = $1 ORDER BY t.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// IncrementViews bumps the views counter for an auction.
func (s *Store) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE auction_statistics SET views_count = views_count + 1 WHERE auction_id = $1`, id)
	return err
}

// ListAuctions returns one page of auctions matching the filter, plus the
// total match count for pagination.
func (s *Store) ListAuctions(ctx context.Context, f ListFilter) ([]*Auction, int64, error) {
	where, args := f.whereClause()

	var total int64
	countQuery := `SELECT COUNT(*)` + auctionFrom + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset, limit := f.pageWindow(total)
	query := `SELECT ` + auctionColumns + auctionFrom + where + f.orderClause() +
		fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	auctions := []*Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, 0, err
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, a := range auctions {
		if a.Tags, err = s.auctionTags(ctx, a.ID); err != nil {
			return nil, 0, err
		}
	}
	return auctions, total, nil
}

// MarkAuctions annotates the given auctions with the viewer's bookmark flag
// and count of own bids. Every marker is set, false/zero included.
func (s *Store) MarkAuctions(ctx context.Context, userID uuid.UUID, auctions []*Auction) error {
	if len(auctions) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(auctions))
	byID := make(map[uuid.UUID]*Auction, len(auctions))
	for i, a := range auctions {
		ids[i] = a.ID
		byID[a.ID] = a
		bookmarked := false
		var bids int64
		a.Bookmarked = &bookmarked
		a.MyBidsCount = &bids
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT auction_id FROM bookmarks WHERE user_id = $1 AND auction_id = ANY($2)`,
		userID, pq.Array(ids))
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if a := byID[id]; a != nil {
			*a.Bookmarked = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT auction_id, COUNT(*) FROM bids
		WHERE author = $1 AND auction_id = ANY($2) AND status <> 'Deleted'
		GROUP BY auction_id`,
		userID, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return err
		}
		if a := byID[id]; a != nil {
			*a.MyBidsCount = n
		}
	}
	return rows.Err()
}

// UpdateAuction rewrites the mutable fields of an auction and replaces its
// tag links.
func (s *Store) UpdateAuction(ctx context.Context, a *Auction, tagIDs []int64) error {
	a.UpdatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE auctions SET auction_name = $1, description = $2,
		category_id = $3, start_date = $4, end_date = $5, max_price = $6, quantity = $7,
		accepted_bidders = $8, accepted_locations = $9, currency = $10, custom_fields = $11,
		condition = $12, updated_at = $13 WHERE id = $14`,
		a.AuctionName, a.Description, a.CategoryID, a.StartDate, a.EndDate,
		a.MaxPrice, a.Quantity, a.AcceptedBidders, a.AcceptedLocations,
		a.Currency, []byte(a.CustomFields), a.Condition, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM auction_tags WHERE auction_id = $1`, a.ID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO auction_tags (auction_id, tag_id) VALUES ($1, $2)`, a.ID, tagID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteAuction applies the canonical delete semantics: Draft auctions are
// removed permanently, everything else is flipped to Deleted.
func (s *Store) DeleteAuction(ctx context.Context, id uuid.UUID, status Status) error {
	if status == StatusDraft {
		_, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE id = $1`, id)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET status = $1, updated_at = $2 WHERE id = $3`,
		StatusDeleted, time.Now(), id)
	return err
}

// SetStatus moves an auction to the given status, but only from the expected
// one. Returns false when the transition did not apply.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeclareWinner records the winning bid on a completed auction. The bid must
// be Approved and belong to the auction.
func (s *Store) DeclareWinner(ctx context.Context, auctionID, bidID uuid.UUID) (*uuid.UUID, string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	var author uuid.UUID
	var offer string
	err = tx.QueryRowContext(ctx,
		`SELECT author, offer FROM bids WHERE id = $1 AND auction_id = $2 AND status = 'Approved'`,
		bidID, auctionID).Scan(&author, &offer)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("bid %s is not an approved bid of auction %s", bidID, auctionID)
	}
	if err != nil {
		return nil, "", err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET winner = $1, winner_bid_amount = $2, updated_at = $3 WHERE id = $4`,
		author, offer, time.Now(), auctionID)
	if err != nil {
		return nil, "", err
	}
	return &author, offer, tx.Commit()
}

// CompleteExpired flips one batch of Live auctions whose end date has passed
// to Completed and returns their ids. Rows are locked with SKIP LOCKED so
// concurrent runs never double-process a batch.
func (s *Store) CompleteExpired(ctx context.Context, now time.Time, batchSize int) ([]uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM auctions
		WHERE status = 'Live' AND end_date <= $1
		ORDER BY end_date LIMIT $2 FOR UPDATE SKIP LOCKED`, now, batchSize)
	if err != nil {
		return nil, err
	}
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET status = 'Completed', updated_at = $1 WHERE id = ANY($2)`,
		now, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return ids, tx.Commit()
}

// PurgeUserAuctions applies the accounts-service deletion contract: the
// author's Draft auctions are removed, all the rest flip to Deleted.
func (s *Store) PurgeUserAuctions(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE auctions SET status = 'Deleted', updated_at = $1 WHERE author = $2 AND status <> 'Draft'`,
		time.Now(), userID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM auctions WHERE author = $1 AND status = 'Draft'`, userID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// Bookmarks
// =============================================================================

// ErrDuplicateBookmark is returned when a user bookmarks an auction twice.
var ErrDuplicateBookmark = errors.New("auction already bookmarked")

// CreateBookmark inserts a bookmark and bumps the auction's bookmark counter,
// returning the new count.
func (s *Store) CreateBookmark(ctx context.Context, b *Bookmark) (int64, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, auction_id, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.UserID, b.AuctionID, b.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return 0, ErrDuplicateBookmark
		}
		return 0, err
	}

	var count int64
	err = tx.QueryRowContext(ctx, `UPDATE auction_statistics
		SET bookmarks_count = bookmarks_count + 1
		WHERE auction_id = $1 RETURNING bookmarks_count`, b.AuctionID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// GetBookmark returns a bookmark by id, or nil, nil when absent.
func (s *Store) GetBookmark(ctx context.Context, id uuid.UUID) (*Bookmark, error) {
	b := &Bookmark{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, auction_id, created_at FROM bookmarks WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &b.AuctionID, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBookmark removes a bookmark and decrements the auction's counter,
// returning the remaining count.
func (s *Store) DeleteBookmark(ctx context.Context, b *Bookmark) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = $1`, b.ID); err != nil {
		return 0, err
	}

	var count int64
	err = tx.QueryRowContext(ctx, `UPDATE auction_statistics
		SET bookmarks_count = GREATEST(bookmarks_count - 1, 0)
		WHERE auction_id = $1 RETURNING bookmarks_count`, b.AuctionID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// ListBookmarks returns one page of a user's bookmarks with auction summaries.
func (s *Store) ListBookmarks(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Bookmark, int64, error) {
	conds := []string{"b.user_id = $1"}
	args := []interface{}{userID}
	if f.Status != "" && f.Status != StatusUpcoming {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.Condition != "" {
		args = append(args, f.Condition)
		conds = append(conds, fmt.Sprintf("a.condition = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	from := ` FROM bookmarks b
		JOIN auctions a ON a.id = b.auction_id
		JOIN categories c ON c.id = a.category_id
		JOIN auction_statistics st ON st.auction_id = a.id`

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset, limit := f.pageWindow(total)
	query := `SELECT b.id, b.user_id, b.created_at, ` + auctionColumns + from + where +
		fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bookmarks := []*Bookmark{}
	for rows.Next() {
		b := &Bookmark{Auction: &Auction{Statistics: &Statistics{}}}
		a := b.Auction
		var customFields []byte
		var winner, topBidAuthor uuid.NullUUID
		var winnerAmount, topBid sql.NullString
		err := rows.Scan(
			&b.ID, &b.UserID, &b.CreatedAt,
			&a.ID, &a.Author, &a.AuctionName, &a.Description, &a.Category, &a.CategoryID,
			&a.StartDate, &a.EndDate, &a.MaxPrice, &a.Quantity, &a.AcceptedBidders,
			&a.AcceptedLocations, &a.Status, &a.Currency, &customFields, &winner,
			&winnerAmount, &a.Condition, &a.CreatedAt, &a.UpdatedAt,
			&a.Statistics.ViewsCount, &a.Statistics.TotalBidsCount,
			&a.Statistics.BookmarksCount, &topBid, &topBidAuthor,
		)
		if err != nil {
			return nil, 0, err
		}
		a.CustomFields = customFields
		b.AuctionID = a.ID
		if winner.Valid {
			a.Winner = &winner.UUID
		}
		if winnerAmount.Valid {
			a.WinnerBidAmount = &winnerAmount.String
		}
		if topBid.Valid {
			a.Statistics.TopBid = &topBid.String
		}
		if topBidAuthor.Valid {
			a.Statistics.TopBidAuthor = &topBidAuthor.UUID
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, total, rows.Err()
}
