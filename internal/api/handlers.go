package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bidhub/auctions/internal/auction"
	"github.com/bidhub/auctions/internal/bid"
	"github.com/bidhub/auctions/internal/events"
	"github.com/bidhub/auctions/internal/live"
	"github.com/bidhub/auctions/internal/pkg/logger"
)

// Handlers carries every HTTP handler's dependencies.
type Handlers struct {
	auctions *auction.Store
	bids     *bid.Store
	hub      *live.Hub
	events   *events.Publisher // nil when the event bridge is disabled

	db          *sql.DB
	redisClient *redis.Client
	revokeQueue string

	log       *logger.Logger
	startTime time.Time
}

// NewHandlers creates the handler set. publisher may be nil.
func NewHandlers(db *sql.DB, redisClient *redis.Client, hub *live.Hub, publisher *events.Publisher, revokeQueue string) *Handlers {
	return &Handlers{
		auctions:    auction.NewStore(db),
		bids:        bid.NewStore(db),
		hub:         hub,
		events:      publisher,
		db:          db,
		redisClient: redisClient,
		revokeQueue: revokeQueue,
		log:         logger.With("api"),
		startTime:   time.Now(),
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// pageResponse is the envelope every list endpoint returns.
type pageResponse struct {
	Count      int64       `json:"count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	Results    interface{} `json:"results"`
}

func respondPage(w http.ResponseWriter, f auction.ListFilter, total int64, results interface{}) {
	page, pageSize, totalPages := f.PageInfo(total)
	respondJSON(w, http.StatusOK, pageResponse{
		Count:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Results:    results,
	})
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// HandleHealth reports db and cache reachability. Always 200; the body
// carries the verdict.
//
//	GET /health
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "up", "cache": "up"}
	overall := "healthy"

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "down"
		overall = "unhealthy"
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		checks["cache"] = "down"
		if overall == "healthy" {
			overall = "degraded"
		}
	}

	respondJSON(w, http.StatusOK, HealthStatus{
		Status: overall,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}
