package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidFrameRate is returned when LOOPER_FRAME_RATE is outside 1..60.
var ErrInvalidFrameRate = errors.New("config: LOOPER_FRAME_RATE must be between 1 and 60")

// Env holds process-level settings read from the environment.
type Env struct {
	FFmpegPath   string `env:"LOOPER_FFMPEG_PATH, default=ffmpeg"`
	FFprobePath  string `env:"LOOPER_FFPROBE_PATH, default=ffprobe"`
	FrameRate    int    `env:"LOOPER_FRAME_RATE, default=24"`
	AudioBitrate string `env:"LOOPER_AUDIO_BITRATE, default=192k"`
	VideoPreset  string `env:"LOOPER_VIDEO_PRESET, default=veryfast"`

	LogFormat string `env:"LOOPER_LOG_FORMAT, default=text"` // "json" or "text"
	LogLevel  string `env:"LOOPER_LOG_LEVEL, default=info"`

	// Optional upload of finished videos.
	S3Bucket           string `env:"LOOPER_S3_BUCKET"`
	S3Region           string `env:"LOOPER_S3_REGION"`
	S3Endpoint         string `env:"LOOPER_S3_ENDPOINT"`
	S3Prefix           string `env:"LOOPER_S3_PREFIX, default=loops"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

// LoadEnv reads the environment using go-envconfig and validates it.
func LoadEnv(ctx context.Context) (*Env, error) {
	return loadEnv(ctx, envconfig.OsLookuper())
}

func loadEnv(ctx context.Context, lookuper envconfig.Lookuper) (*Env, error) {
	cfg := &Env{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Env) Validate() error {
	if c.FrameRate < 1 || c.FrameRate > 60 {
		return fmt.Errorf("%w: got %d", ErrInvalidFrameRate, c.FrameRate)
	}
	return nil
}

// S3Enabled reports whether finished videos should be uploaded.
func (c *Env) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// NewLogger creates a structured logger writing to stderr.
func (c *Env) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a structured logger writing to w.
func (c *Env) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
