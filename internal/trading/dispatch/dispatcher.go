package dispatch

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/spothook/internal/exchange/binance"
	"github.com/Alias1177/spothook/internal/metrics"
	"github.com/Alias1177/spothook/internal/models"
	"github.com/Alias1177/spothook/internal/notify"
	"github.com/Alias1177/spothook/internal/trading/risk"
	"github.com/Alias1177/spothook/internal/utils"
)

type ctxKey struct{}

// Bounds on signal amounts. Decimal cost grows with the exponent, so the
// shape is checked before any arithmetic or comparison.
const (
	maxSignalDigits   = 32
	maxSignalExponent = 32
	maxRiskPct        = 100
)

var maxSignalAmount = decimal.New(1, 15)

// WithRequestID attaches the webhook request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Dispatcher authenticates trade signals, sizes them and submits market orders.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	cfg      *models.Config
	sender   binance.Sender
	accounts *binance.Inspector
	notifier notify.Notifier
	logger   zerolog.Logger
}

// New creates a Dispatcher. A nil notifier disables notifications.
func New(cfg *models.Config, sender binance.Sender, notifier notify.Notifier) *Dispatcher {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Dispatcher{
		cfg:      cfg,
		sender:   sender,
		accounts: binance.NewInspector(sender),
		notifier: notifier,
		logger:   log.With().Str("component", "dispatcher").Logger(),
	}
}

// Authenticate compares token with the configured one in constant time.
// An empty configured token never authenticates.
func (d *Dispatcher) Authenticate(token string) bool {
	if d.cfg.AuthToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(d.cfg.AuthToken)) == 1
}

// Dispatch runs one webhook call end to end. Every outcome, including exchange
// and network failures, is returned as a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, token string, body []byte) Result {
	logger := d.loggerFor(ctx)

	if !d.Authenticate(token) {
		logger.Warn().Bool("token_present", token != "").Msg("Rejected webhook with invalid auth token")
		metrics.ObserveSignal("none", KindUnauthorized)
		return unauthorized()
	}

	var signal models.TradeSignal
	if err := json.Unmarshal(body, &signal); err != nil {
		logger.Warn().Err(err).Msg("Malformed signal body")
		metrics.ObserveSignal("none", KindBadRequest)
		return failure(KindBadRequest, map[string]any{"reason": "malformed JSON body"})
	}

	var res Result
	switch signal.Action {
	case models.ActionOpenTrade:
		res = d.openTrade(ctx, logger, signal)
	case models.ActionCloseTrade:
		res = d.closeTrade(ctx, logger, signal)
	case "":
		res = failure(KindBadRequest, map[string]any{"reason": "action is required"})
	default:
		res = failure(KindUnknownAction, map[string]any{"action": signal.Action})
	}

	metrics.ObserveSignal(actionLabel(signal.Action), outcomeLabel(res))
	return res
}

func (d *Dispatcher) openTrade(ctx context.Context, logger zerolog.Logger, signal models.TradeSignal) Result {
	symbol, res, ok := d.symbol(signal)
	if !ok {
		return res
	}
	if reason := validateOpen(signal); reason != "" {
		return failure(KindBadRequest, map[string]any{"reason": reason})
	}
	entry, stop, riskPct := signal.EntryPrice.Decimal, signal.StopPrice.Decimal, signal.RiskPct.Decimal

	quoteFree, err := d.accounts.FreeBalance(ctx, d.cfg.QuoteAsset)
	if err != nil {
		return d.exchangeFailure(logger, "fetching quote balance", err)
	}

	qtyPrecision, quotePrecision := d.cfg.PrecisionFor(symbol)
	size, err := risk.NewSizer(qtyPrecision).SizeOpen(quoteFree, riskPct, entry, stop)
	switch {
	case errors.Is(err, risk.ErrNoBalance):
		return failure(KindNoBalance, map[string]any{"asset": d.cfg.QuoteAsset, "free": quoteFree})
	case errors.Is(err, risk.ErrInvalidStop):
		return failure(KindInvalidStop, map[string]any{"entry_price": entry, "stop_price": stop})
	case err != nil:
		return failure(KindBadRequest, map[string]any{"reason": err.Error()})
	}

	quoteQty := size.Notional.Round(quotePrecision)
	if !quoteQty.IsPositive() {
		return failure(KindOrderTooSmall, map[string]any{"position_notional": size.Notional})
	}

	order := models.OrderRequest{
		Symbol:        symbol,
		Side:          models.SideBuy,
		Type:          models.OrderTypeMarket,
		QuoteOrderQty: decimal.NewNullDecimal(quoteQty),
	}

	payload := map[string]any{
		"symbol":            symbol,
		"position_notional": size.Notional,
		"quote_order_qty":   quoteQty,
		"calculated_qty":    size.Quantity,
		"stop_fraction":     size.StopFraction,
		"risk_cash":         size.RiskCash,
	}

	logger.Info().
		Str("symbol", symbol).
		Stringer("quote_free", quoteFree).
		Stringer("notional", size.Notional).
		Stringer("quantity", size.Quantity).
		Msg("Submitting open order")

	return d.submit(ctx, logger, order, StatusOpenTradeSent, payload)
}

func (d *Dispatcher) closeTrade(ctx context.Context, logger zerolog.Logger, signal models.TradeSignal) Result {
	symbol, res, ok := d.symbol(signal)
	if !ok {
		return res
	}
	base := utils.BaseAsset(symbol, d.cfg.QuoteAsset)

	baseFree, err := d.accounts.FreeBalance(ctx, base)
	if err != nil {
		return d.exchangeFailure(logger, "fetching base balance", err)
	}

	qtyPrecision, _ := d.cfg.PrecisionFor(symbol)
	quantity, err := risk.NewSizer(qtyPrecision).SizeClose(baseFree)
	if err != nil {
		return failure(KindNothingToClose, map[string]any{"asset": base, "free": baseFree})
	}

	order := models.OrderRequest{
		Symbol:   symbol,
		Side:     models.SideSell,
		Type:     models.OrderTypeMarket,
		Quantity: decimal.NewNullDecimal(quantity),
	}

	payload := map[string]any{
		"symbol":   symbol,
		"qty_sold": quantity,
	}

	logger.Info().
		Str("symbol", symbol).
		Stringer("base_free", baseFree).
		Stringer("quantity", quantity).
		Msg("Submitting close order")

	return d.submit(ctx, logger, order, StatusCloseTradeSent, payload)
}

// submit places order and folds the exchange reply into payload.
func (d *Dispatcher) submit(ctx context.Context, logger zerolog.Logger, order models.OrderRequest, status string, payload map[string]any) Result {
	resp, err := binance.PlaceOrder(ctx, d.sender, order)
	if err != nil {
		// The order may or may not have reached the exchange.
		logger.Error().Err(err).Str("symbol", order.Symbol).Msg("Order submission failed")
		payload["reason"] = err.Error()
		return failure(KindTransportFault, payload)
	}
	payload["binance_response"] = resp

	rejected := resp.InvalidJSON || resp.APIError() != nil || resp.StatusCode >= http.StatusBadRequest
	d.notify(ctx, logger, order, status, rejected)

	if rejected {
		logger.Warn().Str("symbol", order.Symbol).Int("status", resp.StatusCode).Msg("Exchange rejected order")
		return failure(KindUpstreamError, payload)
	}

	logger.Info().Str("symbol", order.Symbol).Str("status", status).Msg("Order accepted by exchange")
	return success(status, payload)
}

func (d *Dispatcher) notify(ctx context.Context, logger zerolog.Logger, order models.OrderRequest, status string, rejected bool) {
	trade := notify.Trade{
		RequestID: RequestID(ctx),
		Status:    status,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Rejected:  rejected,
	}
	if order.QuoteOrderQty.Valid {
		trade.SizeField, trade.Size = "quoteOrderQty", order.QuoteOrderQty.Decimal.String()
	} else {
		trade.SizeField, trade.Size = "quantity", order.Quantity.Decimal.String()
	}

	if err := d.notifier.Notify(ctx, trade); err != nil {
		logger.Warn().Err(err).Msg("Trade notification failed")
	}
}

func (d *Dispatcher) exchangeFailure(logger zerolog.Logger, op string, err error) Result {
	var accErr *binance.AccountError
	switch {
	case errors.As(err, &accErr):
		logger.Warn().Err(err).Msg("Account snapshot unusable")
		return failure(KindAccountFetchFailed, map[string]any{"binance_response": accErr.Response})
	case errors.Is(err, binance.ErrTransport):
		logger.Error().Err(err).Msg("Exchange unreachable")
		return failure(KindTransportFault, map[string]any{"reason": fmt.Sprintf("%s: %v", op, err)})
	default:
		logger.Error().Err(err).Msg("Unexpected exchange failure")
		return failure(KindTransportFault, map[string]any{"reason": fmt.Sprintf("%s: %v", op, err)})
	}
}

// symbol normalises the signal symbol. Values end up unescaped in a signed
// query string, so only letters and digits are accepted.
func (d *Dispatcher) symbol(signal models.TradeSignal) (string, Result, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(signal.Symbol))
	if symbol == "" {
		symbol = d.cfg.DefaultSymbol
	}
	if !utils.IsSymbol(symbol) {
		return "", failure(KindBadRequest, map[string]any{"reason": "symbol must be alphanumeric"}), false
	}
	if utils.BaseAsset(symbol, d.cfg.QuoteAsset) == "" {
		return "", failure(KindBadRequest, map[string]any{
			"reason": fmt.Sprintf("symbol must be quoted in %s", d.cfg.QuoteAsset),
		}), false
	}
	return symbol, Result{}, true
}

func validateOpen(signal models.TradeSignal) string {
	switch {
	case !signal.EntryPrice.Valid:
		return "entry_price is required"
	case !signal.StopPrice.Valid:
		return "stop_price is required"
	case !signal.RiskPct.Valid:
		return "risk_pct is required"
	}

	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"entry_price", signal.EntryPrice.Decimal},
		{"stop_price", signal.StopPrice.Decimal},
		{"risk_pct", signal.RiskPct.Decimal},
	} {
		if reason := checkAmount(f.name, f.value); reason != "" {
			return reason
		}
	}

	switch {
	case !signal.EntryPrice.Decimal.IsPositive():
		return "entry_price must be positive"
	case signal.StopPrice.Decimal.IsNegative():
		return "stop_price must not be negative"
	case !signal.RiskPct.Decimal.IsPositive():
		return "risk_pct must be positive"
	case signal.RiskPct.Decimal.GreaterThan(decimal.NewFromInt(maxRiskPct)):
		return "risk_pct must not exceed 100"
	}
	return ""
}

// checkAmount rejects values too precise or too large to trade.
func checkAmount(name string, d decimal.Decimal) string {
	if exp := d.Exponent(); exp < -maxSignalExponent || exp > maxSignalExponent || d.NumDigits() > maxSignalDigits {
		return name + " is out of range"
	}
	if d.Abs().GreaterThan(maxSignalAmount) {
		return name + " is out of range"
	}
	return ""
}

func (d *Dispatcher) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", "dispatcher").Logger()
	}
	return d.logger
}

func actionLabel(a models.Action) string {
	switch a {
	case models.ActionOpenTrade, models.ActionCloseTrade:
		return string(a)
	case "":
		return "none"
	default:
		return "unknown"
	}
}

func outcomeLabel(r Result) string {
	switch r.Outcome {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnauthorized:
		return KindUnauthorized
	default:
		return r.Kind
	}
}
