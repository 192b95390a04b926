package auction

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an auction. "Upcoming" is not stored:
// a Live auction whose start date has not passed yet is reported as Upcoming.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusLive      Status = "Live"
	StatusCompleted Status = "Completed"
	StatusCanceled  Status = "Canceled"
	StatusDeleted   Status = "Deleted"

	// StatusUpcoming is a derived, filter-only status.
	StatusUpcoming Status = "Upcoming"
)

// Valid reports whether s is a storable auction status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusLive, StatusCompleted, StatusCanceled, StatusDeleted:
		return true
	}
	return false
}

// Condition describes the expected condition of the requested item.
type Condition string

const (
	ConditionNew       Condition = "New"
	ConditionOpenBox   Condition = "Open box"
	ConditionExcellent Condition = "Excellent"
	ConditionVeryGood  Condition = "Very Good"
	ConditionGood      Condition = "Good"
	ConditionUsed      Condition = "Used"
	ConditionForParts  Condition = "For parts or not working"
)

// Conditions lists every valid condition value.
var Conditions = []Condition{
	ConditionNew, ConditionOpenBox, ConditionExcellent, ConditionVeryGood,
	ConditionGood, ConditionUsed, ConditionForParts,
}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return false
}

// AcceptedBidders restricts who may bid on an auction.
type AcceptedBidders string

const (
	BiddersCompany    AcceptedBidders = "Company"
	BiddersIndividual AcceptedBidders = "Individual"
	BiddersBoth       AcceptedBidders = "Both"
)

// AcceptedBiddersValues lists every valid accepted-bidders value.
var AcceptedBiddersValues = []AcceptedBidders{BiddersCompany, BiddersIndividual, BiddersBoth}

// Valid reports whether a is a known accepted-bidders value.
func (a AcceptedBidders) Valid() bool {
	return a == BiddersCompany || a == BiddersIndividual || a == BiddersBoth
}

// AcceptedLocations restricts where sellers may ship from.
type AcceptedLocations string

const (
	LocationsMyLocation    AcceptedLocations = "My Location"
	LocationsInternational AcceptedLocations = "International"
)

// Valid reports whether a is a known accepted-locations value.
func (a AcceptedLocations) Valid() bool {
	return a == LocationsMyLocation || a == LocationsInternational
}

// Currency is the ISO code the auction's prices are denominated in.
type Currency string

const (
	CurrencyGEL Currency = "GEL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Currencies lists every supported currency.
var Currencies = []Currency{CurrencyGEL, CurrencyUSD, CurrencyEUR}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyGEL || c == CurrencyUSD || c == CurrencyEUR
}

// Symbol returns the display symbol for the currency.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyUSD:
		return "$"
	case CurrencyEUR:
		return "€"
	default:
		return "₾"
	}
}

// CategoryNames is the fixed marketplace taxonomy; the categories table is
// seeded from this list and never grows at runtime.
var CategoryNames = []string{
	"Electronics",
	"Clothing, Shoes & Accessories",
	"Sporting Goods",
	"Toys & Hobbies",
	"Home & Garden",
	"Jewelry & Watches",
	"Health & Beauty",
	"Business & Industrial",
	"Baby Essentials",
	"Pet Supplies",
	"Books, Movies & Music",
	"Collectibles & Art",
	"Vehicle Parts & Accessories",
	"Musical Instruments & Gear",
	"Major Appliances",
	"Camping & Hiking",
	"Automotive",
	"Real Estate",
	"Furniture",
	"Food & Beverages",
	"Office Supplies",
	"Surveillance & Security",
	"Bicycles & Accessories",
	"Video Games & Consoles",
	"Crafts",
	"Antiques",
	"Fishing & Boating",
	"Other",
}

// TagNames is the fixed tag vocabulary, seeded like the categories.
var TagNames = []string{
	"Luxury", "Vintage", "Durable", "Compact", "Portable", "Innovative",
	"Stylish", "Modern", "Unique", "Handmade", "Eco-friendly", "Limited",
	"Rare", "Functional", "Versatile", "Chic", "Trendy", "Custom", "Sleek",
	"Lightweight", "Smart", "Robust", "Efficient", "Interactive", "Colorful",
	"Elegant", "Bold", "Soft", "Comfortable", "Breathable", "Adjustable",
	"Multi-purpose", "Quick", "Reliable", "Premium", "Original", "Intuitive",
	"Luxurious", "Waterproof", "Wireless", "High-tech", "Energy", "Refreshing",
	"Customizable", "Safe", "Affordable", "Artistic", "Trendsetting", "Classic",
	"Effortless", "Sophisticated", "Warm", "Vibrant", "Reusable", "Accessible",
	"Attractive", "Artisan", "Refined", "Graceful", "Contemporary", "Natural",
	"Sturdy", "Pleasurable", "Impressive", "Generous", "Inspiring", "Whimsical",
	"Trustworthy", "Serene", "Captivating", "Charming", "Nourishing",
	"Passionate", "Affectionate", "Rewarding", "Impactful", "Resilient",
	"Groundbreaking", "Optimistic", "Thoughtful", "Ambitious", "Dynamic",
	"Fearless", "Savvy", "Transformative",
}

// Category is one entry of the fixed taxonomy.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is one entry of the fixed tag vocabulary.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Auction is a buyer's purchase request that sellers compete on with bids.
// Amounts travel as decimal strings to avoid float rounding on money.
type Auction struct {
	ID                uuid.UUID         `json:"id"`
	Author            uuid.UUID         `json:"author"`
	AuctionName       string            `json:"auction_name"`
	Description       string            `json:"description"`
	CategoryID        int64             `json:"-"`
	Category          string            `json:"category"`
	StartDate         time.Time         `json:"start_date"`
	EndDate           time.Time         `json:"end_date"`
	MaxPrice          string            `json:"max_price"`
	Quantity          int               `json:"quantity"`
	AcceptedBidders   AcceptedBidders   `json:"accepted_bidders"`
	AcceptedLocations AcceptedLocations `json:"accepted_locations"`
	Tags              []string          `json:"tags"`
	Status            Status            `json:"status"`
	Currency          Currency          `json:"currency"`
	CustomFields      json.RawMessage   `json:"custom_fields,omitempty"`
	Winner            *uuid.UUID        `json:"winner,omitempty"`
	WinnerBidAmount   *string           `json:"winner_bid_amount,omitempty"`
	Condition         Condition         `json:"condition"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`

	// Populated on list/retrieve when statistics are joined in.
	Statistics *Statistics `json:"statistics,omitempty"`

	// Viewer markers, populated on dashboard listings only.
	Bookmarked  *bool  `json:"bookmarked,omitempty"`
	MyBidsCount *int64 `json:"my_bids_count,omitempty"`
}

// EffectiveStatus maps a stored status to the reported one: a Live auction
// that has not started yet reads as Upcoming.
func (a *Auction) EffectiveStatus(now time.Time) Status {
	if a.Status == StatusLive && a.StartDate.After(now) {
		return StatusUpcoming
	}
	return a.Status
}

// Statistics is the per-auction counter row, maintained transactionally with
// the events that move it (views, bids, bookmarks, top-bid changes).
type Statistics struct {
	ViewsCount     int64      `json:"views_count"`
	TotalBidsCount int64      `json:"total_bids_count"`
	BookmarksCount int64      `json:"bookmarks_count"`
	TopBid         *string    `json:"top_bid,omitempty"`
	TopBidAuthor   *uuid.UUID `json:"top_bid_author,omitempty"`
}

// Bookmark marks an auction a user wants to follow.
type Bookmark struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	CreatedAt time.Time `json:"created_at"`

	// Auction summary for list responses.
	Auction *Auction `json:"auction,omitempty"`
}
