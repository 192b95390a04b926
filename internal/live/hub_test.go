package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func setupTestHub(t *testing.T) (*Hub, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewHub(rdb), rdb
}

func TestPublishReachesChannel(t *testing.T) {
	hub, rdb := setupTestHub(t)
	ctx := context.Background()
	auctionID := uuid.New()

	sub := rdb.Subscribe(ctx, channelPrefix+auctionID.String())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	err := hub.Publish(ctx, auctionID, Event{
		Type:    EventNewBid,
		Message: map[string]interface{}{"offer": "120.00"},
		Extra:   map[string]interface{}{"total_bids_count": 3},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if ev.Type != EventNewBid {
			t.Errorf("type = %q, want %q", ev.Type, EventNewBid)
		}
		if ev.Extra["total_bids_count"] != float64(3) {
			t.Errorf("extra = %v", ev.Extra)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSocketReceivesBroadcast(t *testing.T) {
	hub, _ := setupTestHub(t)
	auctionID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleSocket(w, r, auctionID)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForSubscribers(t, hub, auctionID, 1)

	hub.broadcast(auctionID.String(), []byte(`{"type":"new_bid_notification"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if ev.Type != EventNewBid {
		t.Errorf("type = %q, want %q", ev.Type, EventNewBid)
	}
}

func TestSocketDetachesOnClose(t *testing.T) {
	hub, _ := setupTestHub(t)
	auctionID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleSocket(w, r, auctionID)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitForSubscribers(t, hub, auctionID, 1)
	conn.Close()
	waitForSubscribers(t, hub, auctionID, 0)
}

func waitForSubscribers(t *testing.T, hub *Hub, auctionID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(auctionID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", hub.Subscribers(auctionID), want)
}
