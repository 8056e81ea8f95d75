package scanners

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/sitelens/internal/logging"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls the per-endpoint circuit breakers.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker. Zero means 3.
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	// OpenTimeout is how long a tripped breaker rejects calls before letting
	// one probe through. Zero means 30s.
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 3
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

func newBreaker(name string, cfg BreakerConfig, logger logging.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Callers abandoning a request say nothing about the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				logging.Field{Key: "endpoint", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()})
		},
	})
}
