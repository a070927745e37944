package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer appends an HMAC-SHA256 signature to a query string.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed by secret. An empty secret is accepted;
// the exchange rejects the resulting signature.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns params encoded in order with &signature=<hex> appended.
func (s *Signer) Sign(params *Params) string {
	query := params.Encode()
	return query + "&signature=" + s.Signature(query)
}

// Signature is the lowercase hex HMAC-SHA256 of payload.
func (s *Signer) Signature(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
