// Package storage persists downloaded market data and recorded trades in
// a single SQLite database shared by all the tools.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/quarrydale/tradetools/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS options_data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    underlying TEXT NOT NULL,
    quote_date TEXT NOT NULL,
    expiration TEXT NOT NULL,
    dte REAL NOT NULL,
    strike REAL NOT NULL,
    underlying_last REAL,
    c_bid REAL, c_ask REAL, c_last REAL,
    c_volume INTEGER, c_oi INTEGER,
    c_iv REAL, c_delta REAL, c_gamma REAL, c_theta REAL, c_vega REAL, c_rho REAL,
    p_bid REAL, p_ask REAL, p_last REAL,
    p_volume INTEGER, p_oi INTEGER,
    p_iv REAL, p_delta REAL, p_gamma REAL, p_theta REAL, p_vega REAL, p_rho REAL,
    UNIQUE(underlying, quote_date, expiration, strike)
);
CREATE INDEX IF NOT EXISTS idx_options_quote ON options_data(underlying, quote_date);

CREATE TABLE IF NOT EXISTS short_sale_volume (
    date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    short_volume INTEGER NOT NULL,
    short_exempt_volume INTEGER NOT NULL,
    total_volume INTEGER NOT NULL,
    market TEXT,
    PRIMARY KEY (date, symbol)
);

CREATE TABLE IF NOT EXISTS trades (
    trade_id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    strike_price REAL NOT NULL,
    status TEXT NOT NULL,
    expire_date TEXT NOT NULL,
    premium_open REAL,
    pl_close REAL,
    close_reason TEXT
);

CREATE TABLE IF NOT EXISTS contract_prices (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trade_id INTEGER NOT NULL REFERENCES trades(trade_id),
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    symbol TEXT NOT NULL,
    strike REAL NOT NULL,
    call_price REAL,
    put_price REAL,
    call_data TEXT,
    put_data TEXT
);

CREATE TABLE IF NOT EXISTS gex_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    quote_date TEXT NOT NULL,
    spot REAL NOT NULL,
    expiration TEXT NOT NULL,
    strike REAL NOT NULL,
    call_iv REAL, call_gamma REAL, call_oi REAL,
    put_iv REAL, put_gamma REAL, put_oi REAL,
    call_gex REAL, put_gex REAL,
    UNIQUE(quote_date, expiration, strike)
);
`

// SQLiteStore is the SQLite-backed implementation of Interface.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertOptionRows bulk-inserts chain rows inside one transaction.
// Duplicate (underlying, quote_date, expiration, strike) rows are
// ignored so re-running an import is safe. Returns rows inserted.
func (s *SQLiteStore) InsertOptionRows(ctx context.Context, rows []models.OptionRow) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO options_data (
		underlying, quote_date, expiration, dte, strike, underlying_last,
		c_bid, c_ask, c_last, c_volume, c_oi, c_iv, c_delta, c_gamma, c_theta, c_vega, c_rho,
		p_bid, p_ask, p_last, p_volume, p_oi, p_iv, p_delta, p_gamma, p_theta, p_vega, p_rho
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for i := range rows {
		r := &rows[i]
		res, err := stmt.ExecContext(ctx,
			r.Underlying, r.QuoteDate, r.Expiration, r.DTE, r.Strike, r.UnderlyingLast,
			r.CBid, r.CAsk, r.CLast, r.CVolume, r.COI, r.CIV, r.CDelta, r.CGamma, r.CTheta, r.CVega, r.CRho,
			r.PBid, r.PAsk, r.PLast, r.PVolume, r.POI, r.PIV, r.PDelta, r.PGamma, r.PTheta, r.PVega, r.PRho,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting option row %d: %w", i, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return inserted, nil
}

// QuoteDates returns the distinct quote dates stored for an underlying,
// oldest first.
func (s *SQLiteStore) QuoteDates(ctx context.Context, underlying string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT quote_date FROM options_data WHERE underlying = ? ORDER BY quote_date`, underlying)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ExpirationsOn returns the expirations quoted for an underlying on one
// quote date, nearest first.
func (s *SQLiteStore) ExpirationsOn(ctx context.Context, underlying, quoteDate string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT expiration FROM options_data
		 WHERE underlying = ? AND quote_date = ? ORDER BY expiration`, underlying, quoteDate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var exps []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return exps, rows.Err()
}

const optionRowColumns = `id, underlying, quote_date, expiration, dte, strike, underlying_last,
	c_bid, c_ask, c_last, c_volume, c_oi, c_iv, c_delta, c_gamma, c_theta, c_vega, c_rho,
	p_bid, p_ask, p_last, p_volume, p_oi, p_iv, p_delta, p_gamma, p_theta, p_vega, p_rho`

func scanOptionRow(scanner interface{ Scan(...any) error }) (models.OptionRow, error) {
	var r models.OptionRow
	err := scanner.Scan(
		&r.ID, &r.Underlying, &r.QuoteDate, &r.Expiration, &r.DTE, &r.Strike, &r.UnderlyingLast,
		&r.CBid, &r.CAsk, &r.CLast, &r.CVolume, &r.COI, &r.CIV, &r.CDelta, &r.CGamma, &r.CTheta, &r.CVega, &r.CRho,
		&r.PBid, &r.PAsk, &r.PLast, &r.PVolume, &r.POI, &r.PIV, &r.PDelta, &r.PGamma, &r.PTheta, &r.PVega, &r.PRho,
	)
	return r, err
}

// ChainOn returns the full chain for one (underlying, quote date,
// expiration), ordered by strike.
func (s *SQLiteStore) ChainOn(ctx context.Context, underlying, quoteDate, expiration string) ([]models.OptionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+optionRowColumns+` FROM options_data
		 WHERE underlying = ? AND quote_date = ? AND expiration = ? ORDER BY strike`,
		underlying, quoteDate, expiration)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.OptionRow
	for rows.Next() {
		r, err := scanOptionRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RowAtStrike returns the single chain row at a strike, or ErrNotFound.
func (s *SQLiteStore) RowAtStrike(ctx context.Context, underlying, quoteDate, expiration string, strike float64) (*models.OptionRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+optionRowColumns+` FROM options_data
		 WHERE underlying = ? AND quote_date = ? AND expiration = ? AND strike = ?`,
		underlying, quoteDate, expiration, strike)

	r, err := scanOptionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertShortVolume inserts FINRA short volume records, skipping
// (date, symbol) pairs already present. Returns rows inserted.
func (s *SQLiteStore) UpsertShortVolume(ctx context.Context, recs []models.ShortVolumeRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO short_sale_volume
		(date, symbol, short_volume, short_exempt_volume, total_volume, market)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for i := range recs {
		r := &recs[i]
		res, err := stmt.ExecContext(ctx, r.Date, r.Symbol, r.ShortVolume, r.ShortExemptVolume, r.TotalVolume, r.Market)
		if err != nil {
			return 0, fmt.Errorf("inserting short volume row %d: %w", i, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return inserted, nil
}

// ShortVolumeHistory returns the most recent records for a symbol,
// newest first. limit <= 0 means no limit.
func (s *SQLiteStore) ShortVolumeHistory(ctx context.Context, symbol string, limit int) ([]models.ShortVolumeRecord, error) {
	q := `SELECT date, symbol, short_volume, short_exempt_volume, total_volume, COALESCE(market, '')
	      FROM short_sale_volume WHERE symbol = ? ORDER BY date DESC`
	args := []any{symbol}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ShortVolumeRecord
	for rows.Next() {
		var r models.ShortVolumeRecord
		if err := rows.Scan(&r.Date, &r.Symbol, &r.ShortVolume, &r.ShortExemptVolume, &r.TotalVolume, &r.Market); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertTrade records a new trade and returns its id.
func (s *SQLiteStore) InsertTrade(ctx context.Context, trade *models.TradeRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (date, symbol, strike_price, status, expire_date, premium_open, pl_close, close_reason)
		 VALUES (?,?,?,?,?,?,?,?)`,
		trade.Date, trade.Symbol, trade.StrikePrice, trade.Status, trade.ExpireDate,
		trade.PremiumOpen, trade.PLClose, trade.CloseReason)
	if err != nil {
		return 0, fmt.Errorf("inserting trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	trade.ID = id
	return id, nil
}

// CloseTrade marks a trade closed/expired with its final P&L.
func (s *SQLiteStore) CloseTrade(ctx context.Context, tradeID int64, status string, plClose float64, closeReason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET status = ?, pl_close = ?, close_reason = ? WHERE trade_id = ?`,
		status, plClose, closeReason, tradeID)
	if err != nil {
		return fmt.Errorf("closing trade %d: %w", tradeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenTrades returns trades still open for a symbol. An empty symbol
// matches all symbols.
func (s *SQLiteStore) OpenTrades(ctx context.Context, symbol string) ([]models.TradeRecord, error) {
	q := `SELECT trade_id, date, symbol, strike_price, status, expire_date,
	             COALESCE(premium_open, 0), COALESCE(pl_close, 0), COALESCE(close_reason, '')
	      FROM trades WHERE status = ?`
	args := []any{models.StatusOpen}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY date`
	return s.queryTrades(ctx, q, args...)
}

// TradeHistory returns every trade for a symbol, oldest first. An empty
// symbol matches all symbols.
func (s *SQLiteStore) TradeHistory(ctx context.Context, symbol string) ([]models.TradeRecord, error) {
	q := `SELECT trade_id, date, symbol, strike_price, status, expire_date,
	             COALESCE(premium_open, 0), COALESCE(pl_close, 0), COALESCE(close_reason, '')
	      FROM trades`
	var args []any
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY date, trade_id`
	return s.queryTrades(ctx, q, args...)
}

func (s *SQLiteStore) queryTrades(ctx context.Context, q string, args ...any) ([]models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(&t.ID, &t.Date, &t.Symbol, &t.StrikePrice, &t.Status, &t.ExpireDate,
			&t.PremiumOpen, &t.PLClose, &t.CloseReason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertContractSnapshot stores one tracker poll observation.
func (s *SQLiteStore) InsertContractSnapshot(ctx context.Context, snap *models.ContractSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contract_prices (trade_id, date, time, symbol, strike, call_price, put_price, call_data, put_data)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		snap.TradeID, snap.Date, snap.Time, snap.Symbol, snap.Strike,
		snap.CallPrice, snap.PutPrice, snap.CallData, snap.PutData)
	if err != nil {
		return fmt.Errorf("inserting contract snapshot: %w", err)
	}
	return nil
}

// InsertGEXRows bulk-inserts gamma exposure rows, skipping duplicate
// (quote_date, expiration, strike) keys. Returns rows inserted.
func (s *SQLiteStore) InsertGEXRows(ctx context.Context, recs []models.GEXRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO gex_snapshots
		(quote_date, spot, expiration, strike, call_iv, call_gamma, call_oi,
		 put_iv, put_gamma, put_oi, call_gex, put_gex)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for i := range recs {
		r := &recs[i]
		res, err := stmt.ExecContext(ctx,
			r.QuoteDate, r.Spot, r.Expiration, r.Strike,
			r.CallIV, r.CallGamma, r.CallOI,
			r.PutIV, r.PutGamma, r.PutOI, r.CallGEX, r.PutGEX)
		if err != nil {
			return 0, fmt.Errorf("inserting gex row %d: %w", i, err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return inserted, nil
}

// GEXRowsOn returns the stored gamma exposure snapshot for one quote
// date, ordered by expiration then strike.
func (s *SQLiteStore) GEXRowsOn(ctx context.Context, quoteDate string) ([]models.GEXRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quote_date, spot, expiration, strike, call_iv, call_gamma, call_oi,
		        put_iv, put_gamma, put_oi, call_gex, put_gex
		 FROM gex_snapshots WHERE quote_date = ? ORDER BY expiration, strike`, quoteDate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.GEXRecord
	for rows.Next() {
		var r models.GEXRecord
		if err := rows.Scan(&r.QuoteDate, &r.Spot, &r.Expiration, &r.Strike,
			&r.CallIV, &r.CallGamma, &r.CallOI,
			&r.PutIV, &r.PutGamma, &r.PutOI, &r.CallGEX, &r.PutGEX); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ContractSnapshots returns the polled observations for a trade in
// chronological order.
func (s *SQLiteStore) ContractSnapshots(ctx context.Context, tradeID int64) ([]models.ContractSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, date, time, symbol, strike, COALESCE(call_price, 0), COALESCE(put_price, 0),
		        COALESCE(call_data, ''), COALESCE(put_data, '')
		 FROM contract_prices WHERE trade_id = ? ORDER BY date, time`, tradeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ContractSnapshot
	for rows.Next() {
		var c models.ContractSnapshot
		if err := rows.Scan(&c.TradeID, &c.Date, &c.Time, &c.Symbol, &c.Strike,
			&c.CallPrice, &c.PutPrice, &c.CallData, &c.PutData); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
