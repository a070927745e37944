package binance

import (
	"context"
	"net/http"

	"github.com/Alias1177/spothook/internal/models"
)

// OrderParams lays out an order in the exchange's parameter order:
// symbol, side, type, then the sizing field.
func OrderParams(order models.OrderRequest) *Params {
	p := NewParams(
		"symbol", order.Symbol,
		"side", string(order.Side),
		"type", order.Type,
	)
	if order.QuoteOrderQty.Valid {
		p.Set("quoteOrderQty", order.QuoteOrderQty.Decimal.String())
	}
	if order.Quantity.Valid {
		p.Set("quantity", order.Quantity.Decimal.String())
	}
	return p
}

// PlaceOrder submits order through sender.
func PlaceOrder(ctx context.Context, sender Sender, order models.OrderRequest) (*Response, error) {
	return sender.Send(ctx, http.MethodPost, OrderPath, OrderParams(order))
}
