package models

import "time"

// Config holds everything the webhook service needs at runtime.
// It is built once by config.Load and passed explicitly to each component.
type Config struct {
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string
	AuthToken        string

	QuoteAsset        string
	DefaultSymbol     string
	QuantityPrecision int32
	QuotePrecision    int32
	Symbols           map[string]SymbolPrecision

	ExchangeTimeout time.Duration
	ExchangeRPS     int

	Port        string
	CORSOrigins []string
	LogLevel    string
	LogFile     string

	TelegramBotToken string
	TelegramChatID   int64
}

// SymbolPrecision overrides the default rounding for one trading pair.
type SymbolPrecision struct {
	Quantity *int32 `yaml:"quantity_precision"`
	Quote    *int32 `yaml:"quote_precision"`
}

// PrecisionFor returns the quantity and quote precision for symbol, falling
// back to the global defaults.
func (c *Config) PrecisionFor(symbol string) (quantity, quote int32) {
	quantity, quote = c.QuantityPrecision, c.QuotePrecision
	if p, ok := c.Symbols[symbol]; ok {
		if p.Quantity != nil {
			quantity = *p.Quantity
		}
		if p.Quote != nil {
			quote = *p.Quote
		}
	}
	return quantity, quote
}
