package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the level and an optional rotating log file.
type Options struct {
	Level string
	File  string
}

// Setup configures the global zerolog logger: human readable output on
// stderr and, when File is set, JSON lines in a rotating file.
func Setup(opts Options) zerolog.Level {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if opts.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return level
}

// MaskSecret masks a secret string for logging (shows first 3 and last 3 characters)
func MaskSecret(secret string) string {
	if len(secret) < 7 {
		return "***"
	}
	return secret[:3] + "..." + secret[len(secret)-3:]
}
