package aurelia

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.aurelia.ai"
	defaultWSURL   = "wss://api.aurelia.ai"
	defaultVersion = "2025-04-16"
	defaultTimeout = 30 * time.Second

	defaultQueueSize       = 64
	defaultTombstoneWindow = 5 * time.Second
	defaultCancelTimeout   = 3 * time.Second
	defaultConnectAttempts = 3
)

// Client represents an Aurelia API client.
type Client struct {
	// TTS provides speech synthesis.
	TTS *TTSService

	config *clientConfig
}

// clientConfig represents client configuration.
type clientConfig struct {
	apiKey          string
	version         string
	baseURL         string
	wsURL           string
	httpClient      *http.Client
	timeout         time.Duration
	logger          *slog.Logger
	maxRetries      int
	retryBase       time.Duration
	connectAttempts int
	queueSize       int
	tombstoneWindow time.Duration
	cancelTimeout   time.Duration
}

// Option represents a configuration option function.
type Option func(*clientConfig)

// NewClient creates an Aurelia client.
//
// apiKey is the API key from the Aurelia console.
func NewClient(apiKey string, opts ...Option) *Client {
	config := &clientConfig{
		apiKey:          apiKey,
		version:         defaultVersion,
		baseURL:         defaultBaseURL,
		wsURL:           defaultWSURL,
		timeout:         defaultTimeout,
		maxRetries:      defaultMaxRetries,
		retryBase:       defaultRetryBase,
		connectAttempts: defaultConnectAttempts,
		queueSize:       defaultQueueSize,
		tombstoneWindow: defaultTombstoneWindow,
		cancelTimeout:   defaultCancelTimeout,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.httpClient == nil {
		config.httpClient = &http.Client{Timeout: config.timeout}
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}

	c := &Client{config: config}
	c.TTS = newTTSService(c)
	return c
}

// WithBaseURL sets the HTTP API base URL.
//
// Default: https://api.aurelia.ai
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithWebSocketURL sets the WebSocket URL.
//
// Default: wss://api.aurelia.ai
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithVersion pins the API version sent with every connection.
func WithVersion(version string) Option {
	return func(c *clientConfig) {
		c.version = version
	}
}

// WithHTTPClient sets a custom HTTP client. Its timeout is also used as the
// WebSocket handshake timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the request and handshake timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger used by sessions. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMaxRetries sets the default attempt bound for SpeakWithRetry.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the first backoff delay for retries and
// reconnection attempts.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *clientConfig) {
		c.retryBase = d
	}
}

// WithConnectAttempts bounds how many times a single acquire may dial the
// WebSocket before giving up with a ConnectionError.
func WithConnectAttempts(n int) Option {
	return func(c *clientConfig) {
		c.connectAttempts = n
	}
}

// WithQueueSize sets the per-context delivery queue capacity.
func WithQueueSize(n int) Option {
	return func(c *clientConfig) {
		c.queueSize = n
	}
}

// WithTombstoneWindow sets how long a retired context ID stays reserved
// before it may be reused.
func WithTombstoneWindow(d time.Duration) Option {
	return func(c *clientConfig) {
		c.tombstoneWindow = d
	}
}

// WithCancelTimeout sets how long a cancelled context waits for the server's
// terminal frame before it is forcibly retired. Not every server emits a
// done frame after a cancel.
func WithCancelTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.cancelTimeout = d
	}
}
