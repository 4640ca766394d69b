// Package dashboard serves the straddle tracker database over HTTP as
// a small JSON API plus an HTML index.
package dashboard

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/storage"
	"github.com/quarrydale/tradetools/internal/straddle"
)

//go:embed web/templates/*
var templateFS embed.FS

type Server struct {
	router    *chi.Mux
	server    *http.Server
	storage   storage.Interface
	logger    *logrus.Logger
	addr      string
	authToken string
	refresh   int
	symbol    string
}

type Config struct {
	ListenAddr string
	AuthToken  string
	RefreshSec int
	Symbol     string
}

// TradeView is one trade row joined with its latest snapshot.
type TradeView struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Symbol      string  `json:"symbol"`
	Strike      float64 `json:"strike"`
	Status      string  `json:"status"`
	ExpireDate  string  `json:"expire_date"`
	PremiumOpen float64 `json:"premium_open"`
	PLClose     float64 `json:"pl_close"`
	CloseReason string  `json:"close_reason,omitempty"`
	LastCall    float64 `json:"last_call"`
	LastPut     float64 `json:"last_put"`
	LastSeen    string  `json:"last_seen,omitempty"`
}

type indexData struct {
	Symbol     string
	Trades     []TradeView
	Summary    *straddle.Summary
	WinRatePct float64
	RefreshSec int
	LastUpdate time.Time
}

func NewServer(cfg Config, store storage.Interface, logger *logrus.Logger) *Server {
	if cfg.RefreshSec <= 0 {
		cfg.RefreshSec = 60
	}
	s := &Server{
		router:    chi.NewRouter(),
		storage:   store,
		logger:    logger,
		addr:      cfg.ListenAddr,
		authToken: cfg.AuthToken,
		refresh:   cfg.RefreshSec,
		symbol:    cfg.Symbol,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/", s.handleIndex)
	s.router.Get("/api/trades", s.handleGetTrades)
	s.router.Get("/api/trades/{id}/prices", s.handleGetTradePrices)
	s.router.Get("/api/summary", s.handleGetSummary)
	s.router.Get("/api/shortvolume/{symbol}", s.handleGetShortVolume)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on %s", s.addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(templateFS, "web/templates/dashboard.html")
	if err != nil {
		s.logger.WithError(err).Error("Failed to parse dashboard template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	views, trades, err := s.tradeViews(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trades")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	summary := straddle.Summarize(trades)
	data := indexData{
		Symbol:     s.symbol,
		Trades:     views,
		Summary:    summary,
		WinRatePct: summary.WinRate * 100,
		RefreshSec: s.refresh,
		LastUpdate: time.Now(),
	}
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to execute dashboard template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	views, _, err := s.tradeViews(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trades")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, views)
}

func (s *Server) handleGetTradePrices(w http.ResponseWriter, r *http.Request) {
	var id int64
	if _, err := fmt.Sscanf(chi.URLParam(r, "id"), "%d", &id); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	snaps, err := s.storage.ContractSnapshots(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load snapshots")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, snaps)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	trades, err := s.storage.TradeHistory(r.Context(), s.symbol)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load trade history")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, straddle.Summarize(trades))
}

func (s *Server) handleGetShortVolume(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	recs, err := s.storage.ShortVolumeHistory(r.Context(), symbol, 90)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load short volume")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, recs)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// tradeViews joins trade history rows with their latest snapshot.
func (s *Server) tradeViews(ctx context.Context) ([]TradeView, []models.TradeRecord, error) {
	trades, err := s.storage.TradeHistory(ctx, s.symbol)
	if err != nil {
		return nil, nil, err
	}

	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		v := TradeView{
			ID:          t.ID,
			Date:        t.Date,
			Symbol:      t.Symbol,
			Strike:      t.StrikePrice,
			Status:      t.Status,
			ExpireDate:  t.ExpireDate,
			PremiumOpen: t.PremiumOpen,
			PLClose:     t.PLClose,
			CloseReason: t.CloseReason,
		}
		snaps, err := s.storage.ContractSnapshots(ctx, t.ID)
		if err == nil && len(snaps) > 0 {
			last := snaps[len(snaps)-1]
			v.LastCall = last.CallPrice
			v.LastPut = last.PutPrice
			v.LastSeen = last.Date + " " + last.Time
		}
		views = append(views, v)
	}
	return views, trades, nil
}
