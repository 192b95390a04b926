package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/auth"
	"github.com/bidhub/auctions/internal/events"
	"github.com/bidhub/auctions/internal/live"
)

// auctionPayload is the create/update request body.
type auctionPayload struct {
	AuctionName       string          `json:"auction_name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	MaxPrice          string          `json:"max_price"`
	Quantity          int             `json:"quantity"`
	AcceptedBidders   string          `json:"accepted_bidders"`
	AcceptedLocations string          `json:"accepted_locations"`
	Tags              []string        `json:"tags"`
	Currency          string          `json:"currency"`
	CustomFields      json.RawMessage `json:"custom_fields"`
	Condition         string          `json:"condition"`
}

func (p *auctionPayload) validate(status auction.Status, now time.Time) error {
	if p.AuctionName == "" {
		return fmt.Errorf("auction_name is required")
	}
	if p.Category == "" {
		return fmt.Errorf("category is required")
	}
	if len(p.Tags) == 0 {
		return fmt.Errorf("at least one tag is required")
	}
	if len(p.Tags) > 10 {
		return fmt.Errorf("no more than 10 tags are allowed")
	}
	if !p.StartDate.Before(p.EndDate) {
		return fmt.Errorf("start_date must be before end_date")
	}
	if status == auction.StatusLive && !p.EndDate.After(now) {
		return fmt.Errorf("end_date must be in the future")
	}
	if price, err := strconv.ParseFloat(p.MaxPrice, 64); err != nil || price <= 0 {
		return fmt.Errorf("max_price must be a positive decimal")
	}
	if p.Quantity < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	if p.AcceptedBidders != "" && !auction.AcceptedBidders(p.AcceptedBidders).Valid() {
		return fmt.Errorf("invalid accepted_bidders %q", p.AcceptedBidders)
	}
	if p.AcceptedLocations != "" && !auction.AcceptedLocations(p.AcceptedLocations).Valid() {
		return fmt.Errorf("invalid accepted_locations %q", p.AcceptedLocations)
	}
	if p.Currency != "" && !auction.Currency(p.Currency).Valid() {
		return fmt.Errorf("invalid currency %q", p.Currency)
	}
	if p.Condition != "" && !auction.Condition(p.Condition).Valid() {
		return fmt.Errorf("invalid condition %q", p.Condition)
	}
	return nil
}

func (p *auctionPayload) apply(a *auction.Auction) {
	a.AuctionName = p.AuctionName
	a.Description = p.Description
	a.StartDate = p.StartDate
	a.EndDate = p.EndDate
	a.MaxPrice = p.MaxPrice
	a.Quantity = p.Quantity
	a.Category = p.Category
	a.Tags = p.Tags
	a.CustomFields = p.CustomFields

	a.AcceptedBidders = auction.BiddersBoth
	if p.AcceptedBidders != "" {
		a.AcceptedBidders = auction.AcceptedBidders(p.AcceptedBidders)
	}
	a.AcceptedLocations = auction.LocationsMyLocation
	if p.AcceptedLocations != "" {
		a.AcceptedLocations = auction.AcceptedLocations(p.AcceptedLocations)
	}
	a.Currency = auction.CurrencyGEL
	if p.Currency != "" {
		a.Currency = auction.Currency(p.Currency)
	}
	a.Condition = auction.ConditionNew
	if p.Condition != "" {
		a.Condition = auction.Condition(p.Condition)
	}
}

// HandleBuyerAuctionList lists the caller's own auctions, every status except
// Deleted.
//
//	GET /api/auctions/buyer
func (h *Handlers) HandleBuyerAuctionList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsBuyer() {
		respondError(w, http.StatusForbidden, "buyer role required")
		return
	}

	f := auction.ParseListFilter(r.URL.Query())
	f.Author = user.ID
	f.ExcludeStatuses = []auction.Status{auction.StatusDeleted}
	// Buyer listing ignores the seller-only filters.
	f.Category, f.MinPrice, f.MaxPrice = "", "", ""
	f.StartFrom, f.EndTo = time.Time{}, time.Time{}

	h.listAuctions(w, r, f)
}

// HandleSellerAuctionList lists the open marketplace for sellers: Live
// auctions, optionally narrowed to started (Live) or not yet started
// (Upcoming), with the full filter surface.
//
//	GET /api/auctions/seller
func (h *Handlers) HandleSellerAuctionList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsSeller() {
		respondError(w, http.StatusForbidden, "seller role required")
		return
	}

	f := auction.ParseListFilter(r.URL.Query())
	f.ExcludeStatuses = []auction.Status{auction.StatusDraft, auction.StatusDeleted}
	// Sellers only browse live or upcoming auctions. Without an explicit
	// status the stored Live rows are listed, started or not.
	switch f.Status {
	case "":
		f.StoredStatus = auction.StatusLive
	case auction.StatusLive, auction.StatusUpcoming:
	default:
		respondError(w, http.StatusBadRequest, "status must be Live or Upcoming")
		return
	}

	h.listAuctions(w, r, f)
}

// HandleBuyerDashboard lists the caller's Live auctions that have started.
//
//	GET /api/dashboards/buyer
func (h *Handlers) HandleBuyerDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsBuyer() {
		respondError(w, http.StatusForbidden, "buyer role required")
		return
	}

	f := auction.ParseListFilter(r.URL.Query())
	f.Author = user.ID
	f.Status = auction.StatusLive

	h.listAuctions(w, r, f)
}

// HandleSellerDashboard lists the started Live auctions the caller has bid
// on, with the viewer's bookmark and bid markers.
//
//	GET /api/dashboards/seller
func (h *Handlers) HandleSellerDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsSeller() {
		respondError(w, http.StatusForbidden, "seller role required")
		return
	}

	f := auction.ParseListFilter(r.URL.Query())
	f.Status = auction.StatusLive
	f.BidParticipant = user.ID

	auctions, total, err := h.auctions.ListAuctions(r.Context(), f)
	if err != nil {
		h.log.Error("list auctions failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	if err := h.auctions.MarkAuctions(r.Context(), user.ID, auctions); err != nil {
		h.log.Error("mark auctions failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	now := time.Now()
	for _, a := range auctions {
		a.Status = a.EffectiveStatus(now)
	}
	respondPage(w, f, total, auctions)
}

func (h *Handlers) listAuctions(w http.ResponseWriter, r *http.Request, f auction.ListFilter) {
	auctions, total, err := h.auctions.ListAuctions(r.Context(), f)
	if err != nil {
		h.log.Error("list auctions failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	now := time.Now()
	for _, a := range auctions {
		a.Status = a.EffectiveStatus(now)
	}
	respondPage(w, f, total, auctions)
}

// HandleCreateLiveAuction creates an auction that goes live immediately.
//
//	POST /api/auctions/live
func (h *Handlers) HandleCreateLiveAuction(w http.ResponseWriter, r *http.Request) {
	h.createAuction(w, r, auction.StatusLive)
}

// HandleCreateDraftAuction creates an auction kept as a draft.
//
//	POST /api/auctions/draft
func (h *Handlers) HandleCreateDraftAuction(w http.ResponseWriter, r *http.Request) {
	h.createAuction(w, r, auction.StatusDraft)
}

func (h *Handlers) createAuction(w http.ResponseWriter, r *http.Request, status auction.Status) {
	user, _ := auth.UserFrom(r.Context())
	if !user.IsBuyer() {
		respondError(w, http.StatusForbidden, "buyer role required")
		return
	}
	if !user.HasCountry() {
		respondError(w, http.StatusForbidden, "a country in your profile is required")
		return
	}

	var payload auctionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(status, time.Now()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a := &auction.Auction{Author: user.ID, Status: status}
	payload.apply(a)

	categoryID, err := h.auctions.ResolveCategory(r.Context(), payload.Category)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.CategoryID = categoryID

	tagIDs, err := h.auctions.ResolveTags(r.Context(), payload.Tags)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auctions.CreateAuction(r.Context(), a, tagIDs); err != nil {
		h.log.Error("create auction failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create auction")
		return
	}

	if status == auction.StatusLive {
		h.publishLive(a.ID, live.Event{Type: live.EventNewAuction, Message: a})
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) publishLive(auctionID uuid.UUID, ev live.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.hub.Publish(ctx, auctionID, ev); err != nil {
		h.log.Warn("live publish failed", "auction_id", auctionID, "error", err)
	}
}

func (h *Handlers) auctionFromPath(w http.ResponseWriter, r *http.Request) (*auction.Auction, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "auction not found")
		return nil, false
	}
	a, err := h.auctions.GetAuction(r.Context(), id)
	if err != nil {
		h.log.Error("get auction failed", "auction_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load auction")
		return nil, false
	}
	if a == nil {
		respondError(w, http.StatusNotFound, "auction not found")
		return nil, false
	}
	return a, true
}

// HandleRetrieveAuction returns one auction with statistics. Drafts are
// visible only to their author; non-author views bump the view counter.
//
//	GET /api/auctions/{auctionID}
func (h *Handlers) HandleRetrieveAuction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	if (a.Status == auction.StatusDraft || a.Status == auction.StatusDeleted) && a.Author != user.ID {
		respondError(w, http.StatusNotFound, "auction not found")
		return
	}

	if a.Author != user.ID {
		if err := h.auctions.IncrementViews(r.Context(), a.ID); err != nil {
			h.log.Warn("view count bump failed", "auction_id", a.ID, "error", err)
		} else {
			a.Statistics.ViewsCount++
		}
	}

	a.Status = a.EffectiveStatus(time.Now())
	respondJSON(w, http.StatusOK, a)
}

// HandleUpdateAuction rewrites an auction. Only the author may update, and
// only while the auction is a draft or has not started yet.
//
//	PATCH /api/auctions/{auctionID}
func (h *Handlers) HandleUpdateAuction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	if a.Author != user.ID {
		respondError(w, http.StatusForbidden, "only the auction author may update it")
		return
	}
	now := time.Now()
	if a.Status != auction.StatusDraft && a.EffectiveStatus(now) != auction.StatusUpcoming {
		respondError(w, http.StatusBadRequest, "only draft or upcoming auctions can be updated")
		return
	}

	var payload auctionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(a.Status, now); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload.apply(a)

	categoryID, err := h.auctions.ResolveCategory(r.Context(), payload.Category)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.CategoryID = categoryID

	tagIDs, err := h.auctions.ResolveTags(r.Context(), payload.Tags)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.auctions.UpdateAuction(r.Context(), a, tagIDs); err != nil {
		h.log.Error("update auction failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update auction")
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// HandleDeleteAuction deletes an auction: drafts are removed permanently,
// everything else is marked Deleted.
//
//	DELETE /api/auctions/{auctionID}
func (h *Handlers) HandleDeleteAuction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	if a.Author != user.ID {
		respondError(w, http.StatusForbidden, "only the auction author may delete it")
		return
	}

	if err := h.auctions.DeleteAuction(r.Context(), a.ID, a.Status); err != nil {
		h.log.Error("delete auction failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete auction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBulkDeleteAuctions applies the delete semantics to a list of ids.
// Every id must exist and belong to the caller, otherwise nothing is deleted.
//
//	POST /api/auctions/bulk-delete
func (h *Handlers) HandleBulkDeleteAuctions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	var payload struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids is required")
		return
	}

	// Verify ownership of the whole batch before touching anything.
	targets := make([]*auction.Auction, 0, len(payload.IDs))
	for _, id := range payload.IDs {
		a, err := h.auctions.GetAuction(r.Context(), id)
		if err != nil {
			h.log.Error("bulk delete lookup failed", "auction_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete auctions")
			return
		}
		if a == nil || a.Author != user.ID {
			respondError(w, http.StatusNotFound, fmt.Sprintf("auction %s not found", id))
			return
		}
		targets = append(targets, a)
	}

	for _, a := range targets {
		if err := h.auctions.DeleteAuction(r.Context(), a.ID, a.Status); err != nil {
			h.log.Error("bulk delete failed", "auction_id", a.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to delete auctions")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCancelAuction cancels a live auction and queues revocation of its
// bids for the background worker.
//
//	POST /api/auctions/{auctionID}/cancel
func (h *Handlers) HandleCancelAuction(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	if a.Author != user.ID {
		respondError(w, http.StatusForbidden, "only the auction author may cancel it")
		return
	}

	moved, err := h.auctions.SetStatus(r.Context(), a.ID, auction.StatusLive, auction.StatusCanceled)
	if err != nil {
		h.log.Error("cancel auction failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to cancel auction")
		return
	}
	if !moved {
		respondError(w, http.StatusBadRequest, "only live auctions can be canceled")
		return
	}

	if err := h.redisClient.LPush(r.Context(), h.revokeQueue, a.ID.String()).Err(); err != nil {
		// The worker also drains canceled auctions on its own sweep.
		h.log.Error("enqueue bid revocation failed", "auction_id", a.ID, "error", err)
	}
	h.publishLive(a.ID, live.Event{Type: live.EventAuctionCanceled, Message: map[string]string{
		"auction_id": a.ID.String(),
	}})

	respondJSON(w, http.StatusOK, map[string]string{"status": string(auction.StatusCanceled)})
}

// HandleDeclareWinner records the winning approved bid of a completed
// auction and announces it.
//
//	POST /api/auctions/{auctionID}/declare-winner
func (h *Handlers) HandleDeclareWinner(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())
	a, ok := h.auctionFromPath(w, r)
	if !ok {
		return
	}
	if a.Author != user.ID {
		respondError(w, http.StatusForbidden, "only the auction author may declare a winner")
		return
	}
	if a.Status != auction.StatusCompleted {
		respondError(w, http.StatusBadRequest, "winner can only be declared on a completed auction")
		return
	}
	if a.Winner != nil {
		respondError(w, http.StatusBadRequest, "winner has already been declared")
		return
	}

	var payload struct {
		BidID uuid.UUID `json:"bid_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.BidID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "bid_id is required")
		return
	}

	winner, amount, err := h.auctions.DeclareWinner(r.Context(), a.ID, payload.BidID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.events != nil {
		if err := h.events.Publish(r.Context(), events.EventWinnerDeclared, map[string]string{
			"auction_id": a.ID.String(),
			"winner":     winner.String(),
			"amount":     amount,
		}); err != nil {
			h.log.Error("winner.declared publish failed", "auction_id", a.ID, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"winner":            winner.String(),
		"winner_bid_amount": amount,
	})
}
