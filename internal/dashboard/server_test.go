package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydale/tradetools/internal/models"
	"github.com/quarrydale/tradetools/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seededServer(t *testing.T, cfg Config) (*Server, *storage.MockStorage) {
	t.Helper()
	store := storage.NewMockStorage()
	ctx := context.Background()

	trade := &models.TradeRecord{
		Date:        "2024-01-02",
		Symbol:      "XSP",
		StrikePrice: 475,
		Status:      models.StatusExpired,
		ExpireDate:  "2024-01-02",
		PremiumOpen: 3.3,
		PLClose:     1.1,
		CloseReason: "Option Expired",
	}
	_, err := store.InsertTrade(ctx, trade)
	require.NoError(t, err)
	require.NoError(t, store.InsertContractSnapshot(ctx, &models.ContractSnapshot{
		TradeID: trade.ID, Date: "2024-01-02", Time: "10:00:00",
		Symbol: "XSP", Strike: 475, CallPrice: 1.8, PutPrice: 1.5,
	}))
	_, err = store.UpsertShortVolume(ctx, []models.ShortVolumeRecord{
		{Date: "2024-01-02", Symbol: "GME", ShortVolume: 700, TotalVolume: 1000, Market: "B"},
	})
	require.NoError(t, err)

	cfg.Symbol = "XSP"
	return NewServer(cfg, store, quietLogger()), store
}

func get(t *testing.T, srv *Server, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleIndex(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0"})

	rec := get(t, srv, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "XSP straddle tracker")
	assert.Contains(t, body, "475.00")
	assert.Contains(t, body, "Option Expired")
	assert.Contains(t, body, "1 trades, 1 closed")
}

func TestHandleGetTrades(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0"})

	rec := get(t, srv, "/api/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var views []TradeView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, 475.0, views[0].Strike)
	assert.InDelta(t, 1.8, views[0].LastCall, 1e-9)
	assert.Equal(t, "2024-01-02 10:00:00", views[0].LastSeen)
}

func TestHandleGetTradePrices(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0"})

	rec := get(t, srv, "/api/trades/1/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snaps []models.ContractSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.InDelta(t, 1.5, snaps[0].PutPrice, 1e-9)

	rec = get(t, srv, "/api/trades/nope/prices", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSummary(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0"})

	rec := get(t, srv, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.EqualValues(t, 1, summary["Trades"])
}

func TestHandleGetShortVolume(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0"})

	rec := get(t, srv, "/api/shortvolume/GME", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var recs []models.ShortVolumeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.EqualValues(t, 700, recs[0].ShortVolume)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := seededServer(t, Config{ListenAddr: ":0", AuthToken: "secret"})

	rec := get(t, srv, "/api/trades", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, srv, "/api/trades", map[string]string{"X-Auth-Token": "secre"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "prefix of the token must not pass")

	rec = get(t, srv, "/api/trades", map[string]string{"X-Auth-Token": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, "/api/trades?token=secret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays reachable without a token
	rec = get(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
