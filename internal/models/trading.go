package models

import "github.com/shopspring/decimal"

// Action is the kind of trade a signal asks for.
type Action string

const (
	ActionOpenTrade  Action = "OPEN_TRADE"
	ActionCloseTrade Action = "CLOSE_TRADE"
)

// Side of a spot order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderTypeMarket is the only order type the service submits.
const OrderTypeMarket = "MARKET"

// TradeSignal is the webhook payload sent by the automation tool.
// Decimal fields accept JSON numbers as well as numeric strings.
type TradeSignal struct {
	Action     Action              `json:"action"`
	Symbol     string              `json:"symbol"`
	EntryPrice decimal.NullDecimal `json:"entry_price"`
	StopPrice  decimal.NullDecimal `json:"stop_price"`
	RiskPct    decimal.NullDecimal `json:"risk_pct"`
}

// Balance is the free amount of one asset on the account.
type Balance struct {
	Asset string          `json:"asset"`
	Free  decimal.Decimal `json:"free"`
}

// OrderRequest describes a market order. Exactly one of Quantity and
// QuoteOrderQty is set.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Type          string
	Quantity      decimal.NullDecimal
	QuoteOrderQty decimal.NullDecimal
}
