package bid

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a bid.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusDeleted  Status = "Deleted"
	StatusRevoked  Status = "Revoked"
	StatusCanceled Status = "Cancelled"
)

// MaxBidsPerUser caps how many distinct bids a non-premium seller may place
// on one auction. Changing an existing bid's offer is unlimited.
const MaxBidsPerUser = 5

// MaxImagesPerBid caps attached image URLs per bid.
const MaxImagesPerBid = 5

// Bid is a seller's offer on an auction. Offers are decimal strings; in this
// reverse marketplace a lower offer beats a higher one.
type Bid struct {
	ID                uuid.UUID `json:"id"`
	Author            uuid.UUID `json:"author"`
	AuthorAvatar      string    `json:"author_avatar,omitempty"`
	AuthorNickname    string    `json:"author_nickname,omitempty"`
	AuthorKYCVerified bool      `json:"author_kyc_verified"`
	AuctionID         uuid.UUID `json:"auction"`
	Offer             string    `json:"offer"`
	Description       string    `json:"description,omitempty"`
	DeliveryFee       string    `json:"delivery_fee"`
	Status            Status    `json:"status"`
	ImageURLs         []string  `json:"images"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// AuctionAuthor is joined in for permission checks, not serialized.
	AuctionAuthor uuid.UUID `json:"-"`
}

// SellerStatistics aggregates a seller's bidding activity.
type SellerStatistics struct {
	TotalBids    int64 `json:"total_bids"`
	PendingBids  int64 `json:"pending_bids"`
	ApprovedBids int64 `json:"approved_bids"`
	RejectedBids int64 `json:"rejected_bids"`
	AuctionsWon  int64 `json:"auctions_won"`
}
