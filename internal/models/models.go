// Package models holds the small flat types shared between the tools:
// option legs, recorded trades and earnings events. Each tool owns its
// own richer state; nothing here carries behavior beyond validation.
package models

import (
	"fmt"
	"time"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Side is the direction of an option leg.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// OptionLeg is a single option contract within a position.
type OptionLeg struct {
	Type       OptionType `yaml:"contract_type" json:"contract_type"`
	Side       Side       `yaml:"position" json:"position"`
	Strike     float64    `yaml:"strike_price" json:"strike_price"`
	Premium    float64    `yaml:"premium" json:"premium"`
	Multiplier float64    `yaml:"multiplier" json:"multiplier"`
	// Expiration is optional; calendar spreads need it, same-expiry
	// shapes do not.
	Expiration string `yaml:"expiration,omitempty" json:"expiration,omitempty"`
}

// Validate checks the leg fields that every consumer relies on.
func (l *OptionLeg) Validate() error {
	if l.Type != Call && l.Type != Put {
		return fmt.Errorf("invalid contract type: %q", l.Type)
	}
	if l.Side != Long && l.Side != Short {
		return fmt.Errorf("invalid position side: %q", l.Side)
	}
	if l.Strike <= 0 {
		return fmt.Errorf("strike must be positive, got %.2f", l.Strike)
	}
	if l.Premium < 0 {
		return fmt.Errorf("premium cannot be negative, got %.2f", l.Premium)
	}
	if l.Multiplier <= 0 {
		return fmt.Errorf("multiplier must be positive, got %.2f", l.Multiplier)
	}
	return nil
}

// TotalPremium is the premium paid or received for the whole leg.
func (l *OptionLeg) TotalPremium() float64 {
	return l.Premium * l.Multiplier
}

// TradeRecord is a straddle trade persisted in SQLite.
type TradeRecord struct {
	ID          int64
	Date        string
	Symbol      string
	StrikePrice float64
	Status      string
	ExpireDate  string
	PremiumOpen float64
	PLClose     float64
	CloseReason string
}

// Trade status values.
const (
	StatusOpen    = "OPEN"
	StatusExpired = "EXPIRED"
	StatusClosed  = "CLOSED"
)

// ContractSnapshot is one polled observation of the tracked straddle.
type ContractSnapshot struct {
	TradeID   int64
	Date      string
	Time      string
	Symbol    string
	Strike    float64
	CallPrice float64
	PutPrice  float64
	CallData  string // raw contract JSON
	PutData   string
}

// OptionRow is one strike of an end-of-day options chain in wide form:
// the call and put columns for the same underlying, quote date,
// expiration and strike live on a single row.
type OptionRow struct {
	ID             int64
	Underlying     string
	QuoteDate      string // YYYY-MM-DD
	Expiration     string // YYYY-MM-DD
	DTE            float64
	Strike         float64
	UnderlyingLast float64

	CBid    float64
	CAsk    float64
	CLast   float64
	CVolume int64
	COI     int64
	CIV     float64
	CDelta  float64
	CGamma  float64
	CTheta  float64
	CVega   float64
	CRho    float64

	PBid    float64
	PAsk    float64
	PLast   float64
	PVolume int64
	POI     int64
	PIV     float64
	PDelta  float64
	PGamma  float64
	PTheta  float64
	PVega   float64
	PRho    float64
}

// CallMid returns the call bid/ask midpoint.
func (r *OptionRow) CallMid() float64 { return (r.CBid + r.CAsk) / 2 }

// PutMid returns the put bid/ask midpoint.
func (r *OptionRow) PutMid() float64 { return (r.PBid + r.PAsk) / 2 }

// StraddleMid returns the combined midpoint of both legs at this strike.
func (r *OptionRow) StraddleMid() float64 { return r.CallMid() + r.PutMid() }

// ShortVolumeRecord is one symbol-day of FINRA daily short sale volume.
type ShortVolumeRecord struct {
	Date              string // YYYY-MM-DD
	Symbol            string
	ShortVolume       int64
	ShortExemptVolume int64
	TotalVolume       int64
	Market            string
}

// Ratio returns short volume as a fraction of total volume.
func (r *ShortVolumeRecord) Ratio() float64 {
	if r.TotalVolume == 0 {
		return 0
	}
	return float64(r.ShortVolume) / float64(r.TotalVolume)
}

// GEXRecord is one strike/expiration line of a gamma exposure snapshot.
type GEXRecord struct {
	QuoteDate  string // YYYY-MM-DD
	Spot       float64
	Expiration string // YYYY-MM-DD
	Strike     float64
	CallIV     float64
	CallGamma  float64
	CallOI     float64
	PutIV      float64
	PutGamma   float64
	PutOI      float64
	CallGEX    float64
	PutGEX     float64
}

// EarningsEvent is a single row from the earnings calendar.
type EarningsEvent struct {
	Symbol      string    `json:"symbol"`
	Company     string    `json:"company"`
	Date        time.Time `json:"date"`
	Timing      string    `json:"timing"` // BMO, AMC or unknown
	EPSEstimate float64   `json:"eps_estimate"`
}
