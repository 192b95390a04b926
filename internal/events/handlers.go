package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

// Event types consumed from the accounts service.
const (
	EventUserDeleted = "user.deleted"
)

// UserDeletedHandler reacts to account deletion: the user's Draft auctions
// are removed outright, everything else is flipped to Deleted so historical
// bids keep a referent.
type UserDeletedHandler struct {
	store *auction.Store
	log   *logger.Logger
}

// NewUserDeletedHandler wires the handler to the auction store.
func NewUserDeletedHandler(store *auction.Store) *UserDeletedHandler {
	return &UserDeletedHandler{store: store, log: logger.With("events")}
}

// Handle processes one user.deleted event body of the form {"user_id": "..."}.
func (h *UserDeletedHandler) Handle(ctx context.Context, body map[string]interface{}) error {
	raw, _ := body["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("user.deleted event without a valid user_id: %q", raw)
	}

	if err := h.store.PurgeUserAuctions(ctx, userID); err != nil {
		return fmt.Errorf("purge auctions of user %s: %w", userID, err)
	}
	h.log.Info("purged auctions of deleted user", "user_id", userID)
	return nil
}
