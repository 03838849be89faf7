package utils

import (
	"net"
	"net/http"
	"time"
)

// defaults. can be moved to configs later
const (
	defaultClientTimeout         = 10 * time.Second // absolute deadline for the whole request
	defaultResponseHeaderTimeout = 5 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second

	defaultMaxConnsPerHost     = 32
	defaultMaxIdleConnsPerHost = 16

	defaultDialerTimeout   = 2 * time.Second
	defaultDialerKeepAlive = 30 * time.Second
)

// ClientOption overrides a default on the HTTP client being built.
type ClientOption func(*clientConfig)

type clientConfig struct {
	clientTimeout         time.Duration
	responseHeaderTimeout time.Duration
	maxConnsPerHost       int
}

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.clientTimeout = d }
}
func WithResponseHeaderTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.responseHeaderTimeout = d }
}
func WithMaxConnsPerHost(n int) ClientOption {
	return func(c *clientConfig) { c.maxConnsPerHost = n }
}

// NewHTTPClient builds an *http.Client with safe defaults overridden by opts.
// Zero values are filled with defaults to avoid accidental infinite hangs.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := clientConfig{
		clientTimeout:         defaultClientTimeout,
		responseHeaderTimeout: defaultResponseHeaderTimeout,
		maxConnsPerHost:       defaultMaxConnsPerHost,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clientTimeout <= 0 {
		cfg.clientTimeout = defaultClientTimeout
	}
	if cfg.responseHeaderTimeout <= 0 {
		cfg.responseHeaderTimeout = defaultResponseHeaderTimeout
	}
	if cfg.maxConnsPerHost <= 0 {
		cfg.maxConnsPerHost = defaultMaxConnsPerHost
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialerTimeout,
			KeepAlive: defaultDialerKeepAlive,
		}).DialContext,
		MaxConnsPerHost:       cfg.maxConnsPerHost,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.responseHeaderTimeout,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.clientTimeout,
	}
}
