package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrNoBalance      = errors.New("no balance")
	ErrInvalidStop    = errors.New("invalid stop")
	ErrNothingToClose = errors.New("nothing to close")
)

// DefaultQuantityPrecision is used when a symbol has no precision of its own.
// It ignores the exchange lot size.
const DefaultQuantityPrecision int32 = 6

var hundred = decimal.NewFromInt(100)

// PositionSizingResult holds position sizing calculation results
type PositionSizingResult struct {
	StopFraction decimal.Decimal `json:"stop_fraction"`
	RiskCash     decimal.Decimal `json:"risk_cash"`
	Notional     decimal.Decimal `json:"position_notional"`
	Quantity     decimal.Decimal `json:"calculated_qty"`
}

// Sizer turns a balance and a risk budget into an order size.
// Quantities are rounded half away from zero to Precision places.
type Sizer struct {
	Precision int32
}

// NewSizer creates a Sizer rounding quantities to precision places.
func NewSizer(precision int32) Sizer {
	return Sizer{Precision: precision}
}

// SizeOpen determines the position for a new trade risking riskPct percent of
// balance between entry and stop.
func (s Sizer) SizeOpen(balance, riskPct, entry, stop decimal.Decimal) (*PositionSizingResult, error) {
	if !balance.IsPositive() {
		return nil, ErrNoBalance
	}
	if !entry.IsPositive() {
		return nil, ErrInvalidStop
	}

	// Distance to the stop as a fraction of entry
	stopFraction := entry.Sub(stop).Abs().Div(entry)
	if stopFraction.IsZero() {
		return nil, ErrInvalidStop
	}

	riskCash := balance.Mul(riskPct).Div(hundred)
	notional := riskCash.Div(stopFraction)
	quantity := notional.Div(entry).Round(s.Precision)

	return &PositionSizingResult{
		StopFraction: stopFraction,
		RiskCash:     riskCash,
		Notional:     notional,
		Quantity:     quantity,
	}, nil
}

// SizeClose returns the quantity that liquidates the whole free balance.
// Dust that rounds to zero counts as nothing to close.
func (s Sizer) SizeClose(balance decimal.Decimal) (decimal.Decimal, error) {
	if !balance.IsPositive() {
		return decimal.Zero, ErrNothingToClose
	}
	quantity := balance.Round(s.Precision)
	if quantity.IsZero() {
		return decimal.Zero, ErrNothingToClose
	}
	return quantity, nil
}
