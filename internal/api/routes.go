package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/bidhub/auctions/internal/auth"
)

// SetupRoutes configures the router. Everything under /api requires a valid
// access token; /health and the websocket upgrade endpoint stay open (the
// socket carries no user-specific state, it only receives broadcasts).
func SetupRoutes(h *Handlers, verifier *auth.Verifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	r.Get("/ws/auctions/{auctionID}", func(w http.ResponseWriter, req *http.Request) {
		id, err := uuid.Parse(chi.URLParam(req, "auctionID"))
		if err != nil {
			respondError(w, http.StatusNotFound, "auction not found")
			return
		}
		h.hub.HandleSocket(w, req, id)
	})

	r.Route("/api", func(r chi.Router) {
		if verifier != nil {
			r.Use(verifier.Middleware)
		}

		r.Route("/auctions", func(r chi.Router) {
			r.Get("/buyer", h.HandleBuyerAuctionList)
			r.Get("/seller", h.HandleSellerAuctionList)
			r.Post("/live", h.HandleCreateLiveAuction)
			r.Post("/draft", h.HandleCreateDraftAuction)
			r.Post("/bulk-delete", h.HandleBulkDeleteAuctions)

			r.Route("/{auctionID}", func(r chi.Router) {
				r.Get("/", h.HandleRetrieveAuction)
				r.Patch("/", h.HandleUpdateAuction)
				r.Delete("/", h.HandleDeleteAuction)
				r.Post("/cancel", h.HandleCancelAuction)
				r.Post("/declare-winner", h.HandleDeclareWinner)
				r.Get("/bids", h.HandleListBids)
				r.Post("/bids", h.HandleCreateBid)
				r.Patch("/bids/{bidID}", h.HandleUpdateBid)
			})
		})

		r.Route("/dashboards", func(r chi.Router) {
			r.Get("/buyer", h.HandleBuyerDashboard)
			r.Get("/seller", h.HandleSellerDashboard)
		})

		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", h.HandleListBookmarks)
			r.Post("/", h.HandleCreateBookmark)
			r.Delete("/{bookmarkID}", h.HandleDeleteBookmark)
		})

		r.Get("/bids/{bidID}", h.HandleRetrieveBid)
		r.Post("/bids/{bidID}/approve", h.HandleApproveBid)
		r.Post("/bids/{bidID}/reject", h.HandleRejectBid)

		r.Get("/seller/statistics", h.HandleSellerStatistics)
	})

	return r
}
