package httpservice

import (
	"fmt"
	"net/http"
	"time"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	// Upper bound for PUT /v1/snapshot bodies.
	defaultMaxSnapshotSize = 1 << 30
)

type Config struct {
	Port uint32
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler  http.Handler
	MaxSnapshotSize int64
	ShutdownTimeout time.Duration
}

func (c Config) Validate() error {
	if c.Port == 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxSnapshotSize < 0 {
		return fmt.Errorf("max snapshot size must not be negative")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) maxSnapshotSize() int64 {
	if c.MaxSnapshotSize == 0 {
		return defaultMaxSnapshotSize
	}
	return c.MaxSnapshotSize
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}
	return c.ShutdownTimeout
}
