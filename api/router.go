// Package api exposes the core operations over HTTP for the bot frontend
// and admin tooling.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"predmarket/currency"
	"predmarket/service"
)

// Handlers groups the services the API fronts.
type Handlers struct {
	Users         *service.UserService
	Markets       *service.MarketService
	Leaderboard   *service.LeaderboardService
	Missions      *service.MissionService
	Notifications *service.NotificationService

	// Deposit validation and TON/PRED conversion preview.
	Converter     *currency.Converter
	MinDepositTon decimal.Decimal
	MaxDepositTon decimal.Decimal
}

// NewRouter builds the chi router with all routes mounted.
func NewRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.health)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.getOrCreateUser)
		r.Get("/{userID}", h.getUser)
		r.Post("/{userID}/referral", h.activateReferral)
	})

	r.Route("/markets", func(r chi.Router) {
		r.Post("/", h.createMarket)
		r.Get("/{marketID}", h.getMarket)
		r.Post("/{marketID}/close", h.closeMarket)
		r.Put("/{marketID}/resolve", h.resolveMarket)
		r.Put("/{marketID}/promote", h.promoteMarket)
	})

	r.Post("/bets", h.placeBet)

	r.Route("/leaderboard", func(r chi.Router) {
		r.Get("/current", h.currentStandings)
		r.Post("/close", h.closePeriod)
	})

	r.Route("/missions", func(r chi.Router) {
		r.Get("/{userID}", h.getUserMissions)
		r.Post("/{userID}/{missionID}/claim", h.claimMission)
	})

	r.Post("/notifications", h.enqueueNotification)

	r.Post("/deposits/validate", h.validateDeposit)

	return r
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Server wraps the API HTTP server.
type Server struct {
	srv *http.Server
}

// NewServer creates the API server on the given port.
func NewServer(port int, router chi.Router) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until the listener closes. Run in a goroutine.
func (s *Server) Start() {
	log.WithField("addr", s.srv.Addr).Info("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("API server failed")
	}
}

// Shutdown drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
