package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/spothook/internal/config"
	"github.com/Alias1177/spothook/internal/exchange/binance"
	"github.com/Alias1177/spothook/internal/platform/logging"
)

func fail(msg string) {
	fmt.Println("FAIL:", msg)
	os.Exit(1)
}

func pass(msg string) { fmt.Println("PASS:", msg) }

func main() {
	if err := run(); err != nil {
		fail(err.Error())
	}
	pass("Preflight completed")
}

func run() error {
	logging.Setup(logging.Options{Level: "warn"})

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	for _, c := range []struct{ key, value string }{
		{"BINANCE_API_KEY", cfg.BinanceAPIKey},
		{"BINANCE_API_SECRET", cfg.BinanceAPISecret},
		{"AUTH_TOKEN", cfg.AuthToken},
	} {
		if c.value == "" {
			return fmt.Errorf("%s missing", c.key)
		}
	}
	pass("credentials present")

	gateway := binance.NewClient(binance.Options{
		BaseURL:   cfg.BinanceBaseURL,
		APIKey:    cfg.BinanceAPIKey,
		APISecret: cfg.BinanceAPISecret,
		Timeout:   cfg.ExchangeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Use exponential backoff for the connectivity check only
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	err = backoff.RetryNotify(func() error {
		return gateway.Ping(ctx)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("Exchange ping failed")
	})
	if err != nil {
		return fmt.Errorf("exchange unreachable at %s: %w", cfg.BinanceBaseURL, err)
	}
	pass("exchange reachable: " + cfg.BinanceBaseURL)

	free, err := binance.NewInspector(gateway).FreeBalance(ctx, cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("signed account request rejected: %w", err)
	}
	pass(fmt.Sprintf("credentials accepted, free %s: %s", cfg.QuoteAsset, free))
	return nil
}
