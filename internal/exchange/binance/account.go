package binance

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/spothook/internal/models"
)

// ErrAccountFetch means the account endpoint did not return a balances list.
var ErrAccountFetch = errors.New("account fetch failed")

// AccountError carries the exchange reply that could not be read as an account.
type AccountError struct {
	Response *Response
}

func (e *AccountError) Error() string {
	body, _ := e.Response.MarshalJSON()
	return ErrAccountFetch.Error() + ": " + string(body)
}

func (e *AccountError) Unwrap() error { return ErrAccountFetch }

type accountSnapshot struct {
	Balances *[]struct {
		Asset string `json:"asset"`
		Free  string `json:"free"`
	} `json:"balances"`
}

// Inspector reads balances from the account snapshot. Nothing is cached.
type Inspector struct {
	sender Sender
}

// NewInspector creates an Inspector on top of a Sender.
func NewInspector(sender Sender) *Inspector {
	return &Inspector{sender: sender}
}

// Balances fetches every balance of the account.
func (i *Inspector) Balances(ctx context.Context) ([]models.Balance, error) {
	resp, err := i.sender.Send(ctx, http.MethodGet, AccountPath, NewParams())
	if err != nil {
		return nil, err
	}

	var snap accountSnapshot
	if resp.InvalidJSON || json.Unmarshal(resp.Raw, &snap) != nil || snap.Balances == nil {
		return nil, &AccountError{Response: resp}
	}

	out := make([]models.Balance, 0, len(*snap.Balances))
	for _, b := range *snap.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(&AccountError{Response: resp}, "asset %s free %q", b.Asset, b.Free)
		}
		out = append(out, models.Balance{Asset: b.Asset, Free: free})
	}
	return out, nil
}

// FreeBalance returns the free amount of asset, or zero when the account
// holds none. asset is matched case-sensitively.
func (i *Inspector) FreeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	balances, err := i.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b.Free, nil
		}
	}
	return decimal.Zero, nil
}
