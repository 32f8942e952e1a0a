// File: internal/network/httpclient.go
package network

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/mirror-cli/internal/config"
)

// Transport defaults tuned for fetching many small static assets from a
// handful of hosts.
const (
	DefaultDialTimeout           = 5 * time.Second
	DefaultKeepAliveInterval     = 15 * time.Second
	DefaultTLSHandshakeTimeout   = 5 * time.Second
	DefaultResponseHeaderTimeout = 10 * time.Second
	DefaultRequestTimeout        = 30 * time.Second

	DefaultMaxIdleConns        = 64
	DefaultMaxIdleConnsPerHost = 16
	DefaultIdleConnTimeout     = 30 * time.Second

	// DefaultMaxRedirects mirrors net/http's own limit.
	DefaultMaxRedirects = 10
)

// ClientConfig holds the configuration for the HTTP client and transport layers.
type ClientConfig struct {
	IgnoreTLSErrors bool

	RequestTimeout        time.Duration // Overall per-request timeout.
	DialTimeout           time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	MaxRedirects        int

	ForceHTTP2 bool

	Logger *zap.Logger
}

// Client is a wrapper around the standard http.Client. It is safe for
// concurrent use; callers must close every response body they receive.
type Client struct {
	*http.Client
}

// NewDefaultClientConfig returns the transport defaults.
func NewDefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout:        DefaultRequestTimeout,
		DialTimeout:           DefaultDialTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		MaxRedirects:          DefaultMaxRedirects,
		ForceHTTP2:            true,
	}
}

// ClientConfigFromNetwork derives a client configuration from the network
// section of the application config. Concurrency bounds the connections per
// host so a download batch never opens more sockets than it has workers.
func ClientConfigFromNetwork(cfg config.NetworkConfig, logger *zap.Logger) *ClientConfig {
	c := NewDefaultClientConfig()
	if cfg.Timeout > 0 {
		c.RequestTimeout = cfg.Timeout
	}
	if cfg.Concurrency > 0 {
		c.MaxConnsPerHost = cfg.Concurrency
		if cfg.Concurrency > c.MaxIdleConnsPerHost {
			c.MaxIdleConnsPerHost = cfg.Concurrency
		}
	}
	c.Logger = logger
	return c
}

// NewHTTPTransport creates an http.Transport from config. Compression is
// disabled at the transport level because callers advertise and decode
// encodings themselves (see DecompressBody).
func NewHTTPTransport(cfg *ClientConfig) *http.Transport {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
		// Happy Eyeballs fallback between IPv6 and IPv4.
		FallbackDelay: 300 * time.Millisecond,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(cfg),
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		DisableCompression:    true,
		ForceAttemptHTTP2:     cfg.ForceHTTP2,
	}

	if cfg.ForceHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("Failed to configure HTTP/2 transport, falling back to HTTP/1.1", zap.Error(err))
		}
	} else {
		transport.TLSClientConfig.NextProtos = []string{"http/1.1"}
	}
	return transport
}

// NewClient creates the client wrapper using the configured transport.
// Redirects are followed, but only up to MaxRedirects and only onto http or
// https URLs.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = NewDefaultClientConfig()
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	return &Client{Client: &http.Client{
		Transport: NewHTTPTransport(cfg),
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errors.New("redirect to unsupported scheme " + req.URL.Scheme)
			}
			return nil
		},
	}}
}

// configureTLS sets up the TLS configuration with strong defaults.
func configureTLS(cfg *ClientConfig) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(256),
		InsecureSkipVerify: cfg.IgnoreTLSErrors, //nolint:gosec // opt-in for self-signed mirrors
	}
}
