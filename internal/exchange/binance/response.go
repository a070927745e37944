package binance

import (
	"encoding/json"
	"fmt"
)

// Response is a decoded exchange reply. When the body is not valid JSON,
// InvalidJSON is set and Text holds the raw body; this is a normal return
// value, not an error.
type Response struct {
	StatusCode  int
	Raw         json.RawMessage
	Text        string
	InvalidJSON bool
}

// APIError is the exchange error envelope, e.g. {"code":-2015,"msg":"Invalid API-key"}.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

func newResponse(status int, body []byte) *Response {
	if !json.Valid(body) {
		return &Response{StatusCode: status, Text: string(body), InvalidJSON: true}
	}
	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return &Response{StatusCode: status, Raw: raw}
}

// MarshalJSON renders the exchange body as-is, or the invalid_json sentinel.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.InvalidJSON {
		return json.Marshal(map[string]string{"error": "invalid_json", "text": r.Text})
	}
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// APIError returns the exchange error envelope carried by the body, if any.
func (r *Response) APIError() *APIError {
	if r.InvalidJSON {
		return nil
	}
	var e struct {
		Code *int   `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(r.Raw, &e); err != nil || e.Code == nil || *e.Code >= 0 {
		return nil
	}
	return &APIError{Code: *e.Code, Msg: e.Msg}
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if r.InvalidJSON {
		return fmt.Errorf("invalid_json: %s", r.Text)
	}
	return json.Unmarshal(r.Raw, v)
}
