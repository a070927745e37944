package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Alias1177/spothook/internal/exchange/binance"
	"github.com/Alias1177/spothook/internal/models"
	"github.com/Alias1177/spothook/internal/notify"
)

type sentRequest struct {
	method string
	path   string
	query  string
}

// fakeGateway answers account and order calls from canned bodies.
type fakeGateway struct {
	account    string
	order      string
	accountErr  error
	orderErr    error
	orderStatus int
	requests    []sentRequest
}

func (g *fakeGateway) Send(_ context.Context, method, path string, params *binance.Params) (*binance.Response, error) {
	g.requests = append(g.requests, sentRequest{method: method, path: path, query: params.Encode()})
	var body string
	switch path {
	case binance.AccountPath:
		if g.accountErr != nil {
			return nil, g.accountErr
		}
		body = g.account
	case binance.OrderPath:
		if g.orderErr != nil {
			return nil, g.orderErr
		}
		resp := decodeResponse(g.order)
		if g.orderStatus != 0 {
			resp.StatusCode = g.orderStatus
		}
		return resp, nil
	}
	return decodeResponse(body), nil
}

func (g *fakeGateway) count(path string) int {
	n := 0
	for _, r := range g.requests {
		if r.path == path {
			n++
		}
	}
	return n
}

func decodeResponse(body string) *binance.Response {
	if !json.Valid([]byte(body)) {
		return &binance.Response{StatusCode: http.StatusBadGateway, Text: body, InvalidJSON: true}
	}
	return &binance.Response{StatusCode: http.StatusOK, Raw: json.RawMessage(body)}
}

type recordingNotifier struct {
	trades []notify.Trade
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, t notify.Trade) error {
	n.trades = append(n.trades, t)
	return n.err
}

func testConfig() *models.Config {
	return &models.Config{
		AuthToken:         "s3cret",
		QuoteAsset:        "USDT",
		DefaultSymbol:     "BTCUSDT",
		QuantityPrecision: 6,
		QuotePrecision:    2,
	}
}

const (
	usdt500      = `{"balances":[{"asset":"USDT","free":"500.00000000","locked":"0"},{"asset":"BTC","free":"3.123456789","locked":"0"}]}`
	orderFilled  = `{"symbol":"BTCUSDT","orderId":28,"status":"FILLED"}`
	openBTCBody  = `{"action":"OPEN_TRADE","symbol":"BTCUSDT","entry_price":"50000","stop_price":"49000","risk_pct":"2"}`
	closeBTCBody = `{"action":"CLOSE_TRADE","symbol":"BTCUSDT"}`
)

func mustJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestDispatchUnauthorized(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		token      string
	}{
		{"wrong token", "s3cret", "guess"},
		{"missing token", "s3cret", ""},
		{"prefix of token", "s3cret", "s3c"},
		{"nothing configured", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AuthToken = tt.configured
			gw := &fakeGateway{account: usdt500, order: orderFilled}

			res := New(cfg, gw, nil).Dispatch(context.Background(), tt.token, []byte(openBTCBody))

			if res.Outcome != OutcomeUnauthorized {
				t.Fatalf("Outcome = %v, want unauthorized", res.Outcome)
			}
			if len(gw.requests) != 0 {
				t.Errorf("gateway called %d times before authentication", len(gw.requests))
			}
			body := mustJSON(t, res.Body())
			if body["error"] != KindUnauthorized {
				t.Errorf("body = %v", body)
			}
			if tt.token != "" && strings.Contains(mustString(t, res.Body()), tt.token) {
				t.Error("denial must not echo the received token")
			}
		})
	}
}

func mustString(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestDispatchOpenTrade(t *testing.T) {
	gw := &fakeGateway{account: usdt500, order: orderFilled}
	notifier := &recordingNotifier{}
	d := New(testConfig(), gw, notifier)

	ctx := WithRequestID(context.Background(), "req-42")
	res := d.Dispatch(ctx, "s3cret", []byte(openBTCBody))

	if res.Outcome != OutcomeSuccess || res.Status != StatusOpenTradeSent {
		t.Fatalf("result = %+v", res)
	}

	if gw.count(binance.AccountPath) != 1 || gw.count(binance.OrderPath) != 1 {
		t.Fatalf("requests = %+v", gw.requests)
	}
	order := gw.requests[1]
	if order.method != http.MethodPost {
		t.Errorf("order method = %s", order.method)
	}
	if want := "symbol=BTCUSDT&side=BUY&type=MARKET&quoteOrderQty=500"; order.query != want {
		t.Errorf("order params = %q, want %q", order.query, want)
	}

	body := mustJSON(t, res.Body())
	want := map[string]string{
		"status":            StatusOpenTradeSent,
		"symbol":            "BTCUSDT",
		"stop_fraction":     "0.02",
		"risk_cash":         "10",
		"position_notional": "500",
		"quote_order_qty":   "500",
		"calculated_qty":    "0.01",
	}
	for k, v := range want {
		got, _ := body[k].(string)
		if k != "status" && k != "symbol" {
			if !decimal.RequireFromString(got).Equal(decimal.RequireFromString(v)) {
				t.Errorf("%s = %q, want %s", k, got, v)
			}
			continue
		}
		if got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	resp, ok := body["binance_response"].(map[string]any)
	if !ok || resp["status"] != "FILLED" {
		t.Errorf("binance_response not passed through: %v", body["binance_response"])
	}

	if len(notifier.trades) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.trades))
	}
	if n := notifier.trades[0]; n.RequestID != "req-42" || n.Side != "BUY" || n.SizeField != "quoteOrderQty" || n.Size != "500" {
		t.Errorf("notification = %+v", n)
	}
}

func TestDispatchOpenTradeNumericFields(t *testing.T) {
	gw := &fakeGateway{account: `{"balances":[{"asset":"USDT","free":"1000"}]}`, order: orderFilled}
	body := `{"action":"OPEN_TRADE","entry_price":100,"stop_price":95,"risk_pct":1}`

	res := New(testConfig(), gw, nil).Dispatch(context.Background(), "s3cret", []byte(body))
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("result = %+v", res.Body())
	}
	if want := "symbol=BTCUSDT&side=BUY&type=MARKET&quoteOrderQty=200"; gw.requests[1].query != want {
		t.Errorf("order params = %q, want %q (default symbol)", gw.requests[1].query, want)
	}
	if q := res.Payload["calculated_qty"].(decimal.Decimal); !q.Equal(decimal.NewFromInt(2)) {
		t.Errorf("calculated_qty = %s, want 2", q)
	}
}

func TestDispatchOpenTradeQuotePrecisionOverride(t *testing.T) {
	cfg := testConfig()
	zero := int32(0)
	cfg.Symbols = map[string]models.SymbolPrecision{"BTCUSDT": {Quote: &zero}}
	gw := &fakeGateway{account: `{"balances":[{"asset":"USDT","free":"1000"}]}`, order: orderFilled}
	body := `{"action":"OPEN_TRADE","symbol":"btcusdt","entry_price":"30000","stop_price":"29000","risk_pct":"1"}`

	res := New(cfg, gw, nil).Dispatch(context.Background(), "s3cret", []byte(body))
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("result = %+v", res.Body())
	}
	if want := "symbol=BTCUSDT&side=BUY&type=MARKET&quoteOrderQty=300"; gw.requests[1].query != want {
		t.Errorf("order params = %q, want %q", gw.requests[1].query, want)
	}
}

func TestDispatchCloseTrade(t *testing.T) {
	gw := &fakeGateway{account: usdt500, order: orderFilled}
	res := New(testConfig(), gw, nil).Dispatch(context.Background(), "s3cret", []byte(closeBTCBody))

	if res.Outcome != OutcomeSuccess || res.Status != StatusCloseTradeSent {
		t.Fatalf("result = %+v", res.Body())
	}
	if want := "symbol=BTCUSDT&side=SELL&type=MARKET&quantity=3.123457"; gw.requests[1].query != want {
		t.Errorf("order params = %q, want %q", gw.requests[1].query, want)
	}
	if q := res.Payload["qty_sold"].(decimal.Decimal); q.String() != "3.123457" {
		t.Errorf("qty_sold = %s", q)
	}
}

func TestDispatchErrors(t *testing.T) {
	tests := []struct {
		name         string
		gw           *fakeGateway
		body         string
		wantKind     string
		wantAccounts int
		wantOrders   int
	}{
		{
			name:     "unknown action",
			gw:       &fakeGateway{account: usdt500, order: orderFilled},
			body:     `{"action":"FLIP_TRADE","symbol":"BTCUSDT"}`,
			wantKind: KindUnknownAction,
		},
		{
			name:     "missing action",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"symbol":"BTCUSDT"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "malformed body",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":`,
			wantKind: KindBadRequest,
		},
		{
			name:     "non numeric price",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"abc","stop_price":"1","risk_pct":"1"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "open without stop",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"100","risk_pct":"1"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "open with zero risk",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"95","risk_pct":"0"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "risk above whole balance",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"95","risk_pct":"100.5"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "risk with huge exponent",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"95","risk_pct":"1e3000000"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "entry with tiny exponent",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"1e-3000000","stop_price":"0","risk_pct":"1"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "entry as huge JSON number",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":1e3000000,"stop_price":95,"risk_pct":1}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "stop with too many digits",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"95.0000000000000000000000000000001","risk_pct":"1"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "entry above amount limit",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"OPEN_TRADE","entry_price":"2000000000000000","stop_price":"95","risk_pct":"1"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "symbol with query characters",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"CLOSE_TRADE","symbol":"BTCUSDT&side=BUY"}`,
			wantKind: KindBadRequest,
		},
		{
			name:     "symbol not quoted in USDT",
			gw:       &fakeGateway{account: usdt500},
			body:     `{"action":"CLOSE_TRADE","symbol":"ETHBTC"}`,
			wantKind: KindBadRequest,
		},
		{
			name:         "entry equals stop",
			gw:           &fakeGateway{account: usdt500, order: orderFilled},
			body:         `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"100","risk_pct":"1"}`,
			wantKind:     KindInvalidStop,
			wantAccounts: 1,
		},
		{
			name:         "no quote balance",
			gw:           &fakeGateway{account: `{"balances":[{"asset":"BTC","free":"1"}]}`, order: orderFilled},
			body:         openBTCBody,
			wantKind:     KindNoBalance,
			wantAccounts: 1,
		},
		{
			name:         "notional rounds to zero",
			gw:           &fakeGateway{account: `{"balances":[{"asset":"USDT","free":"0.01"}]}`, order: orderFilled},
			body:         `{"action":"OPEN_TRADE","entry_price":"100","stop_price":"50","risk_pct":"1"}`,
			wantKind:     KindOrderTooSmall,
			wantAccounts: 1,
		},
		{
			name:         "nothing to close",
			gw:           &fakeGateway{account: `{"balances":[{"asset":"BTC","free":"0.00000000"}]}`, order: orderFilled},
			body:         closeBTCBody,
			wantKind:     KindNothingToClose,
			wantAccounts: 1,
		},
		{
			name:         "account error envelope",
			gw:           &fakeGateway{account: `{"code":-2015,"msg":"Invalid API-key"}`},
			body:         openBTCBody,
			wantKind:     KindAccountFetchFailed,
			wantAccounts: 1,
		},
		{
			name:         "account transport fault",
			gw:           &fakeGateway{accountErr: binance.ErrTransport},
			body:         closeBTCBody,
			wantKind:     KindTransportFault,
			wantAccounts: 1,
		},
		{
			name:         "order rejected",
			gw:           &fakeGateway{account: usdt500, order: `{"code":-2010,"msg":"Account has insufficient balance for requested action."}`},
			body:         openBTCBody,
			wantKind:     KindUpstreamError,
			wantAccounts: 1,
			wantOrders:   1,
		},
		{
			name:         "order reply not JSON",
			gw:           &fakeGateway{account: usdt500, order: "<html>502</html>"},
			body:         closeBTCBody,
			wantKind:     KindUpstreamError,
			wantAccounts: 1,
			wantOrders:   1,
		},
		{
			name:         "order reply with server error status",
			gw:           &fakeGateway{account: usdt500, order: `{"msg":"Service unavailable"}`, orderStatus: http.StatusServiceUnavailable},
			body:         openBTCBody,
			wantKind:     KindUpstreamError,
			wantAccounts: 1,
			wantOrders:   1,
		},
		{
			name:         "order transport fault",
			gw:           &fakeGateway{account: usdt500, orderErr: errors.New("dial tcp: i/o timeout")},
			body:         openBTCBody,
			wantKind:     KindTransportFault,
			wantAccounts: 1,
			wantOrders:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(testConfig(), tt.gw, nil).Dispatch(context.Background(), "s3cret", []byte(tt.body))

			if res.Outcome != OutcomeError || res.Kind != tt.wantKind {
				t.Fatalf("result = %v/%q, want error %q (%v)", res.Outcome, res.Kind, tt.wantKind, res.Body())
			}
			if got := tt.gw.count(binance.AccountPath); got != tt.wantAccounts {
				t.Errorf("account calls = %d, want %d", got, tt.wantAccounts)
			}
			if got := tt.gw.count(binance.OrderPath); got != tt.wantOrders {
				t.Errorf("order calls = %d, want %d", got, tt.wantOrders)
			}
			if body := mustJSON(t, res.Body()); body["error"] != tt.wantKind {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestDispatchUpstreamErrorKeepsSizing(t *testing.T) {
	gw := &fakeGateway{account: usdt500, order: "maintenance"}
	notifier := &recordingNotifier{err: errors.New("telegram down")}

	res := New(testConfig(), gw, notifier).Dispatch(context.Background(), "s3cret", []byte(openBTCBody))

	body := mustJSON(t, res.Body())
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v", body)
	}
	if details["position_notional"] != "500" {
		t.Errorf("position_notional = %v", details["position_notional"])
	}
	resp, _ := details["binance_response"].(map[string]any)
	if resp["error"] != "invalid_json" || resp["text"] != "maintenance" {
		t.Errorf("binance_response = %v", details["binance_response"])
	}
	if len(notifier.trades) != 1 || !notifier.trades[0].Rejected {
		t.Errorf("rejection not notified: %+v", notifier.trades)
	}
}
