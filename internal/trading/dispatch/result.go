package dispatch

// Outcome is the terminal state of one webhook request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnauthorized
	OutcomeError
)

// Error kinds reported in the "error" field.
const (
	KindUnauthorized       = "unauthorized"
	KindBadRequest         = "bad_request"
	KindUnknownAction      = "unknown_action"
	KindNoBalance          = "no_balance"
	KindInvalidStop        = "invalid_stop"
	KindNothingToClose     = "nothing_to_close"
	KindOrderTooSmall      = "order_too_small"
	KindAccountFetchFailed = "account_fetch_failed"
	KindUpstreamError      = "upstream_error"
	KindTransportFault     = "transport_fault"
)

// Success statuses.
const (
	StatusOpenTradeSent  = "OPEN_TRADE_SENT"
	StatusCloseTradeSent = "CLOSE_TRADE_SENT"
)

const deniedMessage = "invalid or missing auth token"

// Result is what the dispatcher hands back to the HTTP layer.
type Result struct {
	Outcome Outcome
	Kind    string
	Status  string
	Payload map[string]any
}

// Body renders the result as the in-band JSON object returned to the caller.
func (r Result) Body() map[string]any {
	switch r.Outcome {
	case OutcomeUnauthorized:
		return map[string]any{"error": KindUnauthorized, "message": deniedMessage}
	case OutcomeError:
		body := map[string]any{"error": r.Kind}
		if len(r.Payload) > 0 {
			body["details"] = r.Payload
		}
		return body
	default:
		body := make(map[string]any, len(r.Payload)+1)
		for k, v := range r.Payload {
			body[k] = v
		}
		body["status"] = r.Status
		return body
	}
}

func unauthorized() Result {
	return Result{Outcome: OutcomeUnauthorized, Kind: KindUnauthorized}
}

func failure(kind string, details map[string]any) Result {
	return Result{Outcome: OutcomeError, Kind: kind, Payload: details}
}

func success(status string, payload map[string]any) Result {
	return Result{Outcome: OutcomeSuccess, Status: status, Payload: payload}
}
