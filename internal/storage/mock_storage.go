package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/quarrydale/tradetools/internal/models"
)

// MockStorage implements Interface in memory for testing
type MockStorage struct {
	mu          sync.Mutex
	optionRows  []models.OptionRow
	shortVolume map[string]models.ShortVolumeRecord // keyed date|symbol
	trades      []models.TradeRecord
	snapshots   []models.ContractSnapshot
	gexRows     []models.GEXRecord
	nextTradeID int64

	// Scripted errors for failure paths
	InsertErr error
	QueryErr  error
}

// NewMockStorage creates a new mock storage for testing
func NewMockStorage() *MockStorage {
	return &MockStorage{
		shortVolume: make(map[string]models.ShortVolumeRecord),
		nextTradeID: 1,
	}
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)

func (m *MockStorage) InsertOptionRows(_ context.Context, rows []models.OptionRow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	var inserted int64
	for _, r := range rows {
		if m.findRow(r.Underlying, r.QuoteDate, r.Expiration, r.Strike) != nil {
			continue
		}
		m.optionRows = append(m.optionRows, r)
		inserted++
	}
	return inserted, nil
}

func (m *MockStorage) findRow(underlying, quoteDate, expiration string, strike float64) *models.OptionRow {
	for i := range m.optionRows {
		r := &m.optionRows[i]
		if r.Underlying == underlying && r.QuoteDate == quoteDate && r.Expiration == expiration && r.Strike == strike {
			return r
		}
	}
	return nil
}

func (m *MockStorage) QuoteDates(_ context.Context, underlying string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	seen := make(map[string]bool)
	var dates []string
	for _, r := range m.optionRows {
		if r.Underlying == underlying && !seen[r.QuoteDate] {
			seen[r.QuoteDate] = true
			dates = append(dates, r.QuoteDate)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *MockStorage) ExpirationsOn(_ context.Context, underlying, quoteDate string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	seen := make(map[string]bool)
	var exps []string
	for _, r := range m.optionRows {
		if r.Underlying == underlying && r.QuoteDate == quoteDate && !seen[r.Expiration] {
			seen[r.Expiration] = true
			exps = append(exps, r.Expiration)
		}
	}
	sort.Strings(exps)
	return exps, nil
}

func (m *MockStorage) ChainOn(_ context.Context, underlying, quoteDate, expiration string) ([]models.OptionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.OptionRow
	for _, r := range m.optionRows {
		if r.Underlying == underlying && r.QuoteDate == quoteDate && r.Expiration == expiration {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out, nil
}

func (m *MockStorage) RowAtStrike(_ context.Context, underlying, quoteDate, expiration string, strike float64) (*models.OptionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if r := m.findRow(underlying, quoteDate, expiration, strike); r != nil {
		cp := *r
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MockStorage) UpsertShortVolume(_ context.Context, recs []models.ShortVolumeRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	var inserted int64
	for _, r := range recs {
		key := r.Date + "|" + r.Symbol
		if _, ok := m.shortVolume[key]; ok {
			continue
		}
		m.shortVolume[key] = r
		inserted++
	}
	return inserted, nil
}

func (m *MockStorage) ShortVolumeHistory(_ context.Context, symbol string, limit int) ([]models.ShortVolumeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.ShortVolumeRecord
	for _, r := range m.shortVolume {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStorage) InsertTrade(_ context.Context, trade *models.TradeRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	trade.ID = m.nextTradeID
	m.nextTradeID++
	m.trades = append(m.trades, *trade)
	return trade.ID, nil
}

func (m *MockStorage) CloseTrade(_ context.Context, tradeID int64, status string, plClose float64, closeReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		if m.trades[i].ID == tradeID {
			m.trades[i].Status = status
			m.trades[i].PLClose = plClose
			m.trades[i].CloseReason = closeReason
			return nil
		}
	}
	return ErrNotFound
}

func (m *MockStorage) OpenTrades(_ context.Context, symbol string) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.TradeRecord
	for _, t := range m.trades {
		if t.Status == models.StatusOpen && (symbol == "" || t.Symbol == symbol) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockStorage) TradeHistory(_ context.Context, symbol string) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.TradeRecord
	for _, t := range m.trades {
		if symbol == "" || t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockStorage) InsertContractSnapshot(_ context.Context, snap *models.ContractSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.snapshots = append(m.snapshots, *snap)
	return nil
}

func (m *MockStorage) ContractSnapshots(_ context.Context, tradeID int64) ([]models.ContractSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.ContractSnapshot
	for _, s := range m.snapshots {
		if s.TradeID == tradeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockStorage) InsertGEXRows(_ context.Context, recs []models.GEXRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	var inserted int64
	for _, r := range recs {
		if m.hasGEXRow(r.QuoteDate, r.Expiration, r.Strike) {
			continue
		}
		m.gexRows = append(m.gexRows, r)
		inserted++
	}
	return inserted, nil
}

func (m *MockStorage) hasGEXRow(quoteDate, expiration string, strike float64) bool {
	for _, r := range m.gexRows {
		if r.QuoteDate == quoteDate && r.Expiration == expiration && r.Strike == strike {
			return true
		}
	}
	return false
}

func (m *MockStorage) GEXRowsOn(_ context.Context, quoteDate string) ([]models.GEXRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []models.GEXRecord
	for _, r := range m.gexRows {
		if r.QuoteDate == quoteDate {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Expiration != out[j].Expiration {
			return out[i].Expiration < out[j].Expiration
		}
		return out[i].Strike < out[j].Strike
	})
	return out, nil
}

func (m *MockStorage) Close() error { return nil }
