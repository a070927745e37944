package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/spothook/internal/api/webhook"
	"github.com/Alias1177/spothook/internal/config"
	"github.com/Alias1177/spothook/internal/exchange/binance"
	"github.com/Alias1177/spothook/internal/notify"
	"github.com/Alias1177/spothook/internal/platform/logging"
	"github.com/Alias1177/spothook/internal/trading/dispatch"
)

func main() {
	// Console logging with defaults until the configuration is known
	logging.Setup(logging.Options{Level: os.Getenv("LOG_LEVEL")})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	log.Info().
		Str("base_url", cfg.BinanceBaseURL).
		Str("api_key", logging.MaskSecret(cfg.BinanceAPIKey)).
		Str("quote_asset", cfg.QuoteAsset).
		Int32("quantity_precision", cfg.QuantityPrecision).
		Int("symbol_overrides", len(cfg.Symbols)).
		Msg("Configuration loaded")

	gateway := binance.NewClient(binance.Options{
		BaseURL:        cfg.BinanceBaseURL,
		APIKey:         cfg.BinanceAPIKey,
		APISecret:      cfg.BinanceAPISecret,
		Timeout:        cfg.ExchangeTimeout,
		RequestsPerSec: cfg.ExchangeRPS,
	})

	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram notifier disabled")
		} else {
			notifier = tg
			log.Info().Int64("chat_id", cfg.TelegramChatID).Msg("Telegram notifier enabled")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           webhook.NewRouter(dispatch.New(cfg, gateway, notifier), cfg.CORSOrigins...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting webhook server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
