package events

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auction"
)

func TestUserDeletedHandler(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE auctions SET status = 'Deleted'").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM auctions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	h := NewUserDeletedHandler(auction.NewStore(db))
	err = h.Handle(context.Background(), map[string]interface{}{
		"user_id": uuid.New().String(),
	})
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUserDeletedHandlerBadBody(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	h := NewUserDeletedHandler(auction.NewStore(db))

	if err := h.Handle(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("missing user_id should fail")
	}
	if err := h.Handle(context.Background(), map[string]interface{}{"user_id": "nope"}); err == nil {
		t.Error("malformed user_id should fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("bad bodies must not hit the database: %v", err)
	}
}
