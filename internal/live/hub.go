package live

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/pkg/logger"
)

const (
	channelPrefix = "auction:"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	sendBuffer = 16
)

// Event is one message pushed to an auction's live feed. The shape matches
// what the web clients already consume: a type tag, the payload, and a bag
// of counters.
type Event struct {
	Type    string                 `json:"type"`
	Message interface{}            `json:"message,omitempty"`
	Extra   map[string]interface{} `json:"additional_information,omitempty"`
}

// Event type tags.
const (
	EventNewBid          = "new_bid_notification"
	EventBidUpdated      = "bid_updated_notification"
	EventAuctionCanceled = "auction_canceled_notification"
	EventBookmarksCount  = "bookmarks_count_notification"
	EventNewAuction      = "new_auction_notification"
)

// Hub fans auction events out to WebSocket subscribers. Events travel through
// Redis pub/sub so every server instance delivers to its own sockets.
type Hub struct {
	rdb *redis.Client
	log *logger.Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

// NewHub creates a hub publishing through the given Redis client.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb: rdb,
		log: logger.With("live"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Auth happens via the bearer token; origins are not restricted
			// beyond what the CORS layer already allows.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]map[*client]struct{}),
	}
}

// Publish sends an event to every subscriber of the auction, across all
// server instances.
func (h *Hub) Publish(ctx context.Context, auctionID uuid.UUID, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, channelPrefix+auctionID.String(), data).Err()
}

// Run subscribes to the auction channels and dispatches incoming events to
// local sockets until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	sub := h.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)
			h.broadcast(room, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			// Slow consumer: drop the socket rather than block the hub.
			go c.conn.Close()
		}
	}
}

// Subscribers returns how many sockets are attached to an auction's room.
func (h *Hub) Subscribers(auctionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID.String()])
}

// HandleSocket upgrades the request and attaches the socket to the auction's
// room. The caller has already validated the auction id.
func (h *Hub) HandleSocket(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	room := auctionID.String()

	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump() // blocks until the peer goes away

	h.mu.Lock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	h.mu.Unlock()
	close(c.send)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// readPump discards client frames; the feed is server-to-client only. It
// keeps the connection alive via pong handling and exits on any read error.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
