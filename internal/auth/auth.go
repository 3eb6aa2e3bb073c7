// Package auth provides Bybit API authentication using HMAC-SHA256 signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingCredentials = errors.New("api key and secret are required")

// Credentials holds the API key and secret for signing requests.
type Credentials struct {
	APIKey    string
	APISecret string
}

// LoadCredentials builds credentials from a key and either an inline secret
// or a file containing it.
func LoadCredentials(apiKey, apiSecret, secretFile string) (*Credentials, error) {
	if apiSecret == "" && secretFile != "" {
		data, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read secret file: %w", err)
		}
		apiSecret = strings.TrimSpace(string(data))
	}

	creds := &Credentials{APIKey: apiKey, APISecret: apiSecret}
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	return creds, nil
}

// Valid reports whether both key and secret are set.
func (c *Credentials) Valid() bool {
	return c != nil && c.APIKey != "" && c.APISecret != ""
}

// WebSocketPayloadPrefix is prepended to the expiry when signing a
// websocket auth request.
const WebSocketPayloadPrefix = "GET/realtime"

// WebSocketExpiryWindow is how far in the future the auth expiry lies.
const WebSocketExpiryWindow = 10 * time.Second

// SignWebSocket returns the expiry (unix ms) and hex signature for a
// websocket auth frame.
// Message format: "GET/realtime" + expires
func (c *Credentials) SignWebSocket(now time.Time) (expires int64, signature string) {
	expires = now.Add(WebSocketExpiryWindow).UnixMilli()
	signature = c.sign(WebSocketPayloadPrefix + strconv.FormatInt(expires, 10))
	return expires, signature
}

// AuthArgs returns the args of an {"op":"auth"} frame.
func (c *Credentials) AuthArgs(now time.Time) []any {
	expires, signature := c.SignWebSocket(now)
	return []any{c.APIKey, expires, signature}
}

// REST header names.
const (
	HeaderAPIKey     = "X-BAPI-API-KEY"
	HeaderTimestamp  = "X-BAPI-TIMESTAMP"
	HeaderRecvWindow = "X-BAPI-RECV-WINDOW"
	HeaderSign       = "X-BAPI-SIGN"
)

// SignREST generates authentication headers for a REST request.
// Message format: timestamp + api_key + recv_window + query (or body)
func (c *Credentials) SignREST(timestamp time.Time, recvWindow time.Duration, query string) map[string]string {
	ts := strconv.FormatInt(timestamp.UnixMilli(), 10)
	window := strconv.FormatInt(recvWindow.Milliseconds(), 10)

	return map[string]string{
		HeaderAPIKey:     c.APIKey,
		HeaderTimestamp:  ts,
		HeaderRecvWindow: window,
		HeaderSign:       c.sign(ts + c.APIKey + window + query),
	}
}

func (c *Credentials) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.APISecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
