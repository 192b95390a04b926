package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/auth"
	"github.com/bidhub/auctions/internal/bid"
	"github.com/bidhub/auctions/internal/live"
)

type bidPayload struct {
	Offer       string   `json:"offer"`
	Description string   `json:"description"`
	DeliveryFee string   `json:"delivery_fee"`
	Images      []string `json:"images"`
}

func (p *bidPayload) validate() error {
	if offer, err := strconv.ParseFloat(p.Offer, 64); err != nil || offer <= 0 {
		return fmt.Errorf("offer must be a positive decimal")
	}
	if p.DeliveryFee != "" {
		if fee, err := strconv.ParseFloat(p.DeliveryFee, 64); err != nil || fee < 0 {
			return fmt.Errorf("delivery_fee must be a non-negative decimal")
		}
	}
	if len(p.Images) > bid.MaxImagesPerBid {
		return fmt.Errorf("no more than %d images are allowed", bid.MaxImagesPerBid)
	}
	return nil
}

// allowedBidder reports whether the seller's profile type matches the
// auction's accepted_bidders restriction.
func allowedBidder(a *auction.Auction, user *auth.User) bool {
	switch a.AcceptedBidders {
	case auction.BiddersCompany:
		return user.IsCompany()
	case auction.BiddersIndividual:
		return user.IsIndividual()
	default:
		return true
	}
}

// HandleCreateBid places a seller's bid on a live auction.
//
//	POST /api/auctions/{auctionID}/bids
func (h *Handlers) HandleCreateBid(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsSeller() {
		respondError(w, http.StatusForbidden, "seller role required")
		return
	}
	if !user.HasCountry() {
		respondError(w, http.StatusForbidden, "a country in your profile is required")
		return
	}

	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	now := time.Now()
	if a.Status != auction.StatusLive || now.Before(a.StartDate) || now.After(a.EndDate) {
		respondError(w, http.StatusBadRequest, "auction is not open for bidding")
		return
	}
	if !allowedBidder(a, user) {
		respondError(w, http.StatusForbidden, "your profile type is not accepted on this auction")
		return
	}

	var payload bidPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.bids.CountUserBids(r.Context(), a.ID, user.ID)
	if err != nil {
		h.log.Error("count user bids failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create bid")
		return
	}
	if count >= bid.MaxBidsPerUser {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("no more than %d bids per auction are allowed", bid.MaxBidsPerUser))
		return
	}

	b := &bid.Bid{
		Author:            user.ID,
		AuthorAvatar:      user.Avatar,
		AuthorNickname:    user.Nickname,
		AuthorKYCVerified: user.IsVerified,
		AuctionID:         a.ID,
		Offer:             payload.Offer,
		Description:       payload.Description,
		DeliveryFee:       payload.DeliveryFee,
		ImageURLs:         payload.Images,
	}
	res, err := h.bids.CreateBid(r.Context(), b)
	if err != nil {
		h.log.Error("create bid failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create bid")
		return
	}

	h.publishLive(a.ID, live.Event{
		Type:    live.EventNewBid,
		Message: b,
		Extra: map[string]interface{}{
			"is_top_bid":       res.IsTopBid,
			"total_bids_count": res.TotalBids,
		},
	})
	respondJSON(w, http.StatusCreated, b)
}

func (h *Handlers) bidFromPath(w http.ResponseWriter, r *http.Request) (*bid.Bid, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bidID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "bid not found")
		return nil, false
	}
	b, err := h.bids.GetBid(r.Context(), id)
	if err != nil {
		h.log.Error("get bid failed", "bid_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load bid")
		return nil, false
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "bid not found")
		return nil, false
	}
	return b, true
}

// HandleUpdateBid lets the bid author rework the offer while the auction is
// still live. The bid returns to Pending and the top bid is re-evaluated.
//
//	PATCH /api/auctions/{auctionID}/bids/{bidID}
func (h *Handlers) HandleUpdateBid(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	b, ok := h.bidFromPath(w, r)
	if !ok {
		return
	}
	if b.AuctionID != a.ID {
		respondError(w, http.StatusNotFound, "bid not found")
		return
	}
	if b.Author != user.ID {
		respondError(w, http.StatusForbidden, "only the bid author may update it")
		return
	}
	now := time.Now()
	if a.Status != auction.StatusLive || now.After(a.EndDate) {
		respondError(w, http.StatusBadRequest, "auction is not open for bidding")
		return
	}
	if b.Status == bid.StatusRevoked || b.Status == bid.StatusDeleted {
		respondError(w, http.StatusBadRequest, "bid can no longer be updated")
		return
	}

	var payload bidPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.Offer = payload.Offer
	b.Description = payload.Description
	if payload.DeliveryFee != "" {
		b.DeliveryFee = payload.DeliveryFee
	}
	if err := h.bids.UpdateOffer(r.Context(), b); err != nil {
		h.log.Error("update bid failed", "bid_id", b.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update bid")
		return
	}

	h.publishLive(a.ID, live.Event{Type: live.EventBidUpdated, Message: b})
	respondJSON(w, http.StatusOK, b)
}

// HandleRetrieveBid returns one bid, visible to its author and the auction
// author only.
//
//	GET /api/bids/{bidID}
func (h *Handlers) HandleRetrieveBid(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	b, ok := h.bidFromPath(w, r)
	if !ok {
		return
	}
	if b.Author != user.ID && b.AuctionAuthor != user.ID {
		respondError(w, http.StatusNotFound, "bid not found")
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// HandleListBids pages through an auction's bids. The auction author sees
// every bid, a seller only their own.
//
//	GET /api/auctions/{auctionID}/bids
func (h *Handlers) HandleListBids(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}

	var author *uuid.UUID
	if a.Author != user.ID {
		author = &user.ID
	}

	f := auction.ParseListFilter(r.URL.Query())
	bids, total, err := h.bids.ListBids(r.Context(), a.ID, author, f.Page, f.PageSize)
	if err != nil {
		h.log.Error("list bids failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list bids")
		return
	}
	respondPage(w, f, total, bids)
}

// HandleApproveBid moves a pending bid to Approved.
//
//	POST /api/bids/{bidID}/approve
func (h *Handlers) HandleApproveBid(w http.ResponseWriter, r *http.Request) {
	h.reviewBid(w, r, bid.StatusApproved)
}

// HandleRejectBid moves a pending bid to Rejected. The top bid is recomputed
// in case the rejected bid held it.
//
//	POST /api/bids/{bidID}/reject
func (h *Handlers) HandleRejectBid(w http.ResponseWriter, r *http.Request) {
	h.reviewBid(w, r, bid.StatusRejected)
}

func (h *Handlers) reviewBid(w http.ResponseWriter, r *http.Request, to bid.Status) {
	user, _ := auth.UserFrom(r.Context())
	b, ok := h.bidFromPath(w, r)
	if !ok {
		return
	}
	if b.AuctionAuthor != user.ID {
		respondError(w, http.StatusForbidden, "only the auction author may review bids")
		return
	}

	moved, err := h.bids.SetStatus(r.Context(), b.ID, b.AuctionID, bid.StatusPending, to)
	if err != nil {
		h.log.Error("bid review failed", "bid_id", b.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update bid")
		return
	}
	if !moved {
		respondError(w, http.StatusBadRequest, "only pending bids can be reviewed")
		return
	}
	b.Status = to

	h.publishLive(b.AuctionID, live.Event{Type: live.EventBidUpdated, Message: b})
	respondJSON(w, http.StatusOK, b)
}

// HandleSellerStatistics returns aggregate bid counts for the calling seller.
//
//	GET /api/seller/statistics
func (h *Handlers) HandleSellerStatistics(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsSeller() {
		respondError(w, http.StatusForbidden, "seller role required")
		return
	}

	stats, err := h.bids.SellerStatistics(r.Context(), user.ID)
	if err != nil {
		h.log.Error("seller statistics failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
