package server

import (
	"time"

	"github.com/raysh454/sitelens/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr  string
	ReadTimeout time.Duration
	Logger      logging.Logger

	// Breakers optionally reports remote circuit breaker states on /stats.
	Breakers func() map[string]string
}
