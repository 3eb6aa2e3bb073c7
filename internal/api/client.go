package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/bybit-streams/internal/auth"
)

// DefaultRecvWindow is how long Bybit accepts a signed request after its
// timestamp.
const DefaultRecvWindow = 5 * time.Second

// Client provides access to the Bybit REST API.
type Client struct {
	baseURL    string
	creds      *auth.Credentials
	recvWindow time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		recvWindow: DefaultRecvWindow,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		now:          time.Now,
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCredentials enables signed requests.
func WithCredentials(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithRecvWindow sets the recv window sent with signed requests.
func WithRecvWindow(d time.Duration) ClientOption {
	return func(c *Client) {
		c.recvWindow = d
	}
}
