// Package webclient is the HTTP transport used to reach the remote scanner
// and enrichment services.
package webclient

import (
	"context"
	"net/http"
	"time"
)

// WebClient executes a single request and returns the fully read response.
// Non-2xx statuses are not errors at this layer.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Config controls the default net/http client.
type Config struct {
	// Timeout bounds a whole request including reading the body. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// UserAgent is sent when the request sets none.
	UserAgent string
	// MaxBodyBytes caps how much of a response body is read. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 16 << 20
	DefaultUserAgent    = "sitelens/1.0"
)
