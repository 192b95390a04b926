package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/auth"
	"github.com/bidhub/auctions/internal/live"
)

// HandleCreateBookmark bookmarks an auction for the caller and broadcasts the
// new bookmark count to its live channel.
//
//	POST /api/bookmarks
func (h *Handlers) HandleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	var payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.AuctionID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "auction_id is required")
		return
	}

	a, err := h.auctions.GetAuction(r.Context(), payload.AuctionID)
	if err != nil {
		h.log.Error("bookmark lookup failed", "auction_id", payload.AuctionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create bookmark")
		return
	}
	if a == nil || a.Status == auction.StatusDeleted || (a.Status == auction.StatusDraft && a.Author != user.ID) {
		respondError(w, http.StatusNotFound, "auction not found")
		return
	}

	b := &auction.Bookmark{UserID: user.ID, AuctionID: a.ID}
	count, err := h.auctions.CreateBookmark(r.Context(), b)
	if err != nil {
		if errors.Is(err, auction.ErrDuplicateBookmark) {
			respondError(w, http.StatusBadRequest, "auction is already bookmarked")
			return
		}
		h.log.Error("create bookmark failed", "auction_id", a.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create bookmark")
		return
	}

	h.publishLive(a.ID, live.Event{Type: live.EventBookmarksCount, Message: map[string]interface{}{
		"auction_id":      a.ID.String(),
		"bookmarks_count": count,
	}})
	respondJSON(w, http.StatusCreated, b)
}

// HandleDeleteBookmark removes one of the caller's bookmarks.
//
//	DELETE /api/bookmarks/{bookmarkID}
func (h *Handlers) HandleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "bookmarkID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "bookmark not found")
		return
	}

	b, err := h.auctions.GetBookmark(r.Context(), id)
	if err != nil {
		h.log.Error("get bookmark failed", "bookmark_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}
	if b == nil || b.UserID != user.ID {
		respondError(w, http.StatusNotFound, "bookmark not found")
		return
	}

	count, err := h.auctions.DeleteBookmark(r.Context(), b)
	if err != nil {
		h.log.Error("delete bookmark failed", "bookmark_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}

	h.publishLive(b.AuctionID, live.Event{Type: live.EventBookmarksCount, Message: map[string]interface{}{
		"auction_id":      b.AuctionID.String(),
		"bookmarks_count": count,
	}})
	w.WriteHeader(http.StatusNoContent)
}

// HandleListBookmarks pages through the caller's bookmarks with the embedded
// auctions.
//
//	GET /api/bookmarks
func (h *Handlers) HandleListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	f := auction.ParseListFilter(r.URL.Query())
	bookmarks, total, err := h.auctions.ListBookmarks(r.Context(), user.ID, f)
	if err != nil {
		h.log.Error("list bookmarks failed", "user_id", user.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}

	now := time.Now()
	for _, b := range bookmarks {
		if b.Auction != nil {
			b.Auction.Status = b.Auction.EffectiveStatus(now)
		}
	}
	respondPage(w, f, total, bookmarks)
}
