package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/spothook/internal/models"
)

const (
	defaultBaseURL = "https://api.binance.com"
	defaultSymbol  = "BTCUSDT"
	defaultQuote   = "USDT"
)

// symbolsFile is the layout of the optional SYMBOLS_FILE.
type symbolsFile struct {
	Symbols map[string]models.SymbolPrecision `yaml:"symbols"`
}

// Load initializes configuration from environment variables
func Load() (*models.Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg models.Config

	cfg.BinanceAPIKey = os.Getenv("BINANCE_API_KEY")
	cfg.BinanceAPISecret = os.Getenv("BINANCE_API_SECRET")
	cfg.AuthToken = os.Getenv("AUTH_TOKEN")
	cfg.BinanceBaseURL = strings.TrimSuffix(getEnvWithDefault("BINANCE_BASE_URL", defaultBaseURL), "/")
	cfg.QuoteAsset = strings.ToUpper(getEnvWithDefault("QUOTE_ASSET", defaultQuote))
	cfg.DefaultSymbol = strings.ToUpper(getEnvWithDefault("DEFAULT_SYMBOL", defaultSymbol))
	cfg.QuantityPrecision = int32(getEnvIntWithDefault("QUANTITY_PRECISION", 6))
	cfg.QuotePrecision = int32(getEnvIntWithDefault("QUOTE_PRECISION", 2))
	cfg.ExchangeTimeout = time.Duration(getEnvIntWithDefault("EXCHANGE_TIMEOUT", 10)) * time.Second
	cfg.ExchangeRPS = getEnvIntWithDefault("EXCHANGE_RPS", 0)
	cfg.Port = getEnvWithDefault("PORT", "8080")
	cfg.CORSOrigins = getEnvListWithDefault("CORS_ORIGINS", nil)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)

	if cfg.QuantityPrecision < 0 || cfg.QuotePrecision < 0 {
		return nil, fmt.Errorf("precision must not be negative")
	}

	if path := os.Getenv("SYMBOLS_FILE"); path != "" {
		symbols, err := LoadSymbols(path)
		if err != nil {
			return nil, err
		}
		cfg.Symbols = symbols
	}

	if cfg.AuthToken == "" {
		log.Warn().Msg("AUTH_TOKEN is empty, every webhook call will be rejected")
	}
	if cfg.BinanceAPISecret == "" {
		log.Warn().Msg("BINANCE_API_SECRET is empty, the exchange will reject signed requests")
	}

	return &cfg, nil
}

// LoadSymbols reads per-symbol precision overrides from a YAML file:
//
//	symbols:
//	  BTCUSDT:
//	    quantity_precision: 5
//	    quote_precision: 2
func LoadSymbols(path string) (map[string]models.SymbolPrecision, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading symbols file: %w", err)
	}

	var f symbolsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing symbols file: %w", err)
	}

	out := make(map[string]models.SymbolPrecision, len(f.Symbols))
	for symbol, p := range f.Symbols {
		if (p.Quantity != nil && *p.Quantity < 0) || (p.Quote != nil && *p.Quote < 0) {
			return nil, fmt.Errorf("symbol %s: precision must not be negative", symbol)
		}
		out[strings.ToUpper(symbol)] = p
	}
	return out, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("invalid integer, using default")
	}
	return defaultValue
}
