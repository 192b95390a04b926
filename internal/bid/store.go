package bid

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store provides database operations for bids.
type Store struct {
	db *sql.DB
}

// NewStore creates a new bid store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const bidColumns = `b.id, b.author, b.author_avatar, b.author_nickname, b.author_kyc_verified,
	b.auction_id, b.offer, b.description, b.delivery_fee, b.status, b.created_at, b.updated_at,
	a.author`

// canonical listing order: best offer first, most recently touched breaking ties
const bidOrder = ` ORDER BY b.offer ASC, b.updated_at DESC, b.created_at DESC`

func scanBid(row interface{ Scan(...interface{}) error }) (*Bid, error) {
	b := &Bid{}
	var avatar, nickname, description sql.NullString
	err := row.Scan(&b.ID, &b.Author, &avatar, &nickname, &b.AuthorKYCVerified,
		&b.AuctionID, &b.Offer, &description, &b.DeliveryFee, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.AuctionAuthor)
	if err != nil {
		return nil, err
	}
	b.AuthorAvatar = avatar.String
	b.AuthorNickname = nickname.String
	b.Description = description.String
	return b, nil
}

// CreateResult reports the statistics side effects of placing a bid.
type CreateResult struct {
	IsTopBid  bool
	TotalBids int64
}

// CreateBid inserts a bid with its images and updates the auction statistics
// in one transaction: the bid counter always moves, and the top bid moves
// when the new offer undercuts the current one (lower offer wins).
func (s *Store) CreateBid(ctx context.Context, b *Bid) (*CreateResult, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = StatusPending
	}
	if b.DeliveryFee == "" {
		b.DeliveryFee = "0.00"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO bids (id, author, author_avatar, author_nickname,
		author_kyc_verified, auction_id, offer, description, delivery_fee, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.Author, b.AuthorAvatar, b.AuthorNickname, b.AuthorKYCVerified,
		b.AuctionID, b.Offer, b.Description, b.DeliveryFee, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, url := range b.ImageURLs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bid_images (bid_id, image_url) VALUES ($1, $2)`, b.ID, url)
		if err != nil {
			return nil, err
		}
	}

	res := &CreateResult{}
	err = tx.QueryRowContext(ctx, `UPDATE auction_statistics
		SET total_bids_count = total_bids_count + 1,
		    top_bid = CASE WHEN top_bid IS NULL OR $2::numeric < top_bid THEN $2::numeric ELSE top_bid END,
		    top_bid_author = CASE WHEN top_bid IS NULL OR $2::numeric < top_bid THEN $3 ELSE top_bid_author END
		WHERE auction_id = $1
		RETURNING total_bids_count, top_bid = $2::numeric AND top_bid_author = $3`,
		b.AuctionID, b.Offer, b.Author).Scan(&res.TotalBids, &res.IsTopBid)
	if err != nil {
		return nil, err
	}
	return res, tx.Commit()
}

// GetBid returns a bid with its auction's author joined in, or nil, nil.
func (s *Store) GetBid(ctx context.Context, id uuid.UUID) (*Bid, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bidColumns+`
		FROM bids b JOIN auctions a ON a.id = b.auction_id WHERE b.id = $1`, id)
	b, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.ImageURLs, err = s.bidImages(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) bidImages(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT image_url FROM bid_images WHERE bid_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// CountUserBids returns how many bids the author has on the auction.
func (s *Store) CountUserBids(ctx context.Context, auctionID, author uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND author = $2`,
		auctionID, author).Scan(&n)
	return n, err
}

// UpdateOffer rewrites a bid's offer and description, resets its status to
// Pending, and recomputes the auction's top bid.
func (s *Store) UpdateOffer(ctx context.Context, b *Bid) error {
	b.UpdatedAt = time.Now()
	b.Status = StatusPending

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE bids SET offer = $1, description = $2,
		delivery_fee = $3, status = $4, updated_at = $5 WHERE id = $6`,
		b.Offer, b.Description, b.DeliveryFee, b.Status, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if err := recomputeTopBid(ctx, tx, b.AuctionID); err != nil {
		return err
	}
	return tx.Commit()
}

// SetStatus transitions a bid from one status to another. Returns false when
// the bid was not in the expected status. Rejections recompute the top bid
// since the rejected bid may have held it.
func (s *Store) SetStatus(ctx context.Context, bidID, auctionID uuid.UUID, from, to Status) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bids SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, time.Now(), bidID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if to == StatusRejected {
		if err := recomputeTopBid(ctx, tx, auctionID); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// recomputeTopBid rewrites the top-bid columns from the live bids of the
// auction. Rejected, revoked, deleted and cancelled bids never hold the top.
func recomputeTopBid(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE auction_statistics SET
		top_bid = sub.offer, top_bid_author = sub.author
		FROM (SELECT offer, author FROM bids
			WHERE auction_id = $1 AND status IN ('Pending', 'Approved')
			ORDER BY offer ASC, updated_at DESC LIMIT 1) sub
		WHERE auction_id = $1`, auctionID)
	if err != nil {
		return err
	}
	// No live bids left: clear the top.
	_, err = tx.ExecContext(ctx, `UPDATE auction_statistics
		SET top_bid = NULL, top_bid_author = NULL
		WHERE auction_id = $1 AND NOT EXISTS
			(SELECT 1 FROM bids WHERE auction_id = $1 AND status IN ('Pending', 'Approved'))`,
		auctionID)
	return err
}

// ListBids returns one page of an auction's bids in canonical order. A
// non-nil author narrows the listing to that author's bids.
func (s *Store) ListBids(ctx context.Context, auctionID uuid.UUID, author *uuid.UUID, page, pageSize int) ([]*Bid, int64, error) {
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page < 1 {
		page = 1
	}

	where := ` WHERE b.auction_id = $1`
	args := []interface{}{auctionID}
	if author != nil {
		args = append(args, *author)
		where += fmt.Sprintf(` AND b.author = $%d`, len(args))
	}

	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids b`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + bidColumns + ` FROM bids b JOIN auctions a ON a.id = b.auction_id` +
		where + bidOrder + fmt.Sprintf(` LIMIT %d OFFSET %d`, pageSize, (page-1)*pageSize)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bids := []*Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, 0, err
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, b := range bids {
		if b.ImageURLs, err = s.bidImages(ctx, b.ID); err != nil {
			return nil, 0, err
		}
	}
	return bids, total, nil
}

// RevokeBatch revokes one cursor-ordered batch of a canceled auction's
// Pending/Approved/Rejected bids. It returns the number of bids revoked and
// the cursor for the next call; a zero count means the auction is drained.
func (s *Store) RevokeBatch(ctx context.Context, auctionID uuid.UUID, after time.Time, batchSize int) (int64, time.Time, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, after, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, created_at FROM bids
		WHERE auction_id = $1 AND status IN ('Pending', 'Approved', 'Rejected') AND created_at > $2
		ORDER BY created_at, id LIMIT $3`, auctionID, after, batchSize)
	if err != nil {
		return 0, after, err
	}

	ids := []uuid.UUID{}
	cursor := after
	for rows.Next() {
		var id uuid.UUID
		var createdAt time.Time
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return 0, after, err
		}
		ids = append(ids, id)
		cursor = createdAt
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, after, err
	}
	rows.Close()

	if len(ids) == 0 {
		return 0, cursor, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE bids SET status = 'Revoked', updated_at = $1 WHERE id = ANY($2)`,
		time.Now(), pq.Array(ids))
	if err != nil {
		return 0, after, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, after, err
	}
	return n, cursor, tx.Commit()
}

// SellerStatistics aggregates the author's bidding activity across auctions.
func (s *Store) SellerStatistics(ctx context.Context, author uuid.UUID) (*SellerStatistics, error) {
	stats := &SellerStatistics{}
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'Pending'),
		COUNT(*) FILTER (WHERE status = 'Approved'),
		COUNT(*) FILTER (WHERE status = 'Rejected')
		FROM bids WHERE author = $1`, author).
		Scan(&stats.TotalBids, &stats.PendingBids, &stats.ApprovedBids, &stats.RejectedBids)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM auctions WHERE winner = $1`, author).Scan(&stats.AuctionsWon)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
