package storage

import (
	"context"

	"github.com/quarrydale/tradetools/internal/models"
)

// Interface defines the contract for market-data persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call them from multiple
// goroutines. The SQLite implementation relies on database/sql's
// connection pooling plus a busy timeout for this.
type Interface interface {
	// End-of-day options chains
	InsertOptionRows(ctx context.Context, rows []models.OptionRow) (int64, error)
	QuoteDates(ctx context.Context, underlying string) ([]string, error)
	ExpirationsOn(ctx context.Context, underlying, quoteDate string) ([]string, error)
	ChainOn(ctx context.Context, underlying, quoteDate, expiration string) ([]models.OptionRow, error)
	RowAtStrike(ctx context.Context, underlying, quoteDate, expiration string, strike float64) (*models.OptionRow, error)

	// FINRA daily short sale volume
	UpsertShortVolume(ctx context.Context, recs []models.ShortVolumeRecord) (int64, error)
	ShortVolumeHistory(ctx context.Context, symbol string, limit int) ([]models.ShortVolumeRecord, error)

	// Straddle trades
	InsertTrade(ctx context.Context, trade *models.TradeRecord) (int64, error)
	CloseTrade(ctx context.Context, tradeID int64, status string, plClose float64, closeReason string) error
	OpenTrades(ctx context.Context, symbol string) ([]models.TradeRecord, error)
	TradeHistory(ctx context.Context, symbol string) ([]models.TradeRecord, error)

	// Tracker price snapshots
	InsertContractSnapshot(ctx context.Context, snap *models.ContractSnapshot) error
	ContractSnapshots(ctx context.Context, tradeID int64) ([]models.ContractSnapshot, error)

	// Gamma exposure snapshots
	InsertGEXRows(ctx context.Context, recs []models.GEXRecord) (int64, error)
	GEXRowsOn(ctx context.Context, quoteDate string) ([]models.GEXRecord, error)

	Close() error
}

// NewStorage opens the SQLite-backed store at the given path.
func NewStorage(path string) (Interface, error) {
	return NewSQLiteStore(path)
}

// Ensure SQLiteStore implements Interface
var _ Interface = (*SQLiteStore)(nil)
