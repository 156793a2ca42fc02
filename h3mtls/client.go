package h3mtls

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/quic-go/quic-go/http3"
)

// Client issues HTTP/3 requests whose handshake is governed by TLSConfig.
type Client struct {
	/*
	 * TLS configuration
	 */
	TLSConfig *tls.Config

	/*
	 * QUIC configuration
	 */
	QUICConfig *quic.Config

	// Timeout bounds each request, including the handshake.
	// Zero means no limit beyond the caller's context.
	Timeout time.Duration

	/*
	 * Logger
	 */
	Logger *slog.Logger

	// VerifyHost, if set, replaces TLSConfig.VerifyConnection on every dial
	// with a check bound to the dialed host.
	VerifyHost HostVerifier

	// DialFunc establishes QUIC connections. If nil, quic.DialAddrEarly is used.
	DialFunc quic.DialAddrFunc

	initOnce  sync.Once
	transport *http3.Transport
	http      *http.Client

	closed atomic.Bool
}

func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.Logger == nil {
			c.Logger = slog.New(slog.DiscardHandler)
		}

		c.transport = &http3.Transport{
			TLSClientConfig: c.TLSConfig,
			QUICConfig:      c.QUICConfig,
			Dial:            c.dial,
		}
		c.http = &http.Client{
			Transport: c.transport,
			Timeout:   c.Timeout,
		}

		c.Logger.Debug("initialized client")
	})
}

// dial connects to addr. tlsConfig is a per-connection copy whose ServerName
// holds the target host.
func (c *Client) dial(ctx context.Context, addr string, tlsConfig *tls.Config, quicConfig *quic.Config) (*quic.Conn, error) {
	if c.VerifyHost != nil {
		host := tlsConfig.ServerName
		if host == "" {
			if h, _, err := net.SplitHostPort(addr); err == nil {
				host = h
			}
		}

		tlsConfig = tlsConfig.Clone()
		tlsConfig.VerifyConnection = c.VerifyHost(host)
	}

	dial := c.DialFunc
	if dial == nil {
		dial = quic.DialAddrEarly
	}

	conn, err := dial(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		c.Logger.Debug("failed to dial", "address", addr, "error", err)
		return nil, err
	}
	return conn, nil
}

// Get requests url and returns the response body.
// A status other than 200 OK is reported as ErrUnexpectedStatus; handshake and
// transport failures are classified with Classify.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}

	c.init()

	logger := c.Logger.With("url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("h3mtls: failed to build request: %w", err)
	}

	rsp, err := c.http.Do(req)
	if err != nil {
		err = Classify(err)
		logger.Debug("request failed", "error", err)
		return "", err
	}
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	if err != nil {
		return "", Classify(err)
	}

	if rsp.StatusCode != http.StatusOK {
		logger.Debug("unexpected status", "status", rsp.StatusCode)
		return "", fmt.Errorf("%w: %s", ErrUnexpectedStatus, rsp.Status)
	}

	logger.Debug("request succeeded", "bytes", len(body))

	return string(body), nil
}

// Close releases the client's QUIC connections.
// Subsequent calls to Get return ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.init()

	c.Logger.Debug("closing client")

	return c.transport.Close()
}
