package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds everything environment-tunable about a run. CLI flags
// set by cmd/strace-to-duckdb override the matching field after Load
// returns.
type Config struct {
	LogLevel         string        `env:"STD_LOG_LEVEL,default=info"`
	MaxLineBytes     int64         `env:"STD_MAX_LINE_BYTES,default=10485760"`
	WorkerCount      int           `env:"STD_WORKER_COUNT,default=0"`
	ProgressInterval time.Duration `env:"STD_PROGRESS_INTERVAL,default=100ms"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return &cfg, nil
}
