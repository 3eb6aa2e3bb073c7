package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

// newDialer builds the websocket dialer, routing through SOCKS5 when a proxy
// is configured.
func newDialer(cfg ClientConfig) (*websocket.Dialer, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	if cfg.Proxy == nil {
		return dialer, nil
	}

	p := *cfg.Proxy
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var auth *proxy.Auth
	if p.User != "" {
		auth = &proxy.Auth{User: p.User, Password: p.Password}
	}

	forward := &net.Dialer{Timeout: cfg.HandshakeTimeout}
	socks, err := proxy.SOCKS5("tcp", p.Addr(), auth, forward)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	cd, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("%w: socks5 dialer does not support contexts", ErrInvalidProxy)
	}

	addr := p.Addr()
	dialer.NetDialContext = func(ctx context.Context, network, target string) (net.Conn, error) {
		conn, err := cd.DialContext(ctx, network, target)
		if err != nil {
			return nil, &ProxyError{Proxy: addr, Err: err}
		}
		return conn, nil
	}

	if p.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return dialer, nil
}
