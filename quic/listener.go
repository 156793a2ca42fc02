package quic

import (
	"context"
	"crypto/tls"
	"net"

	quicgo "github.com/quic-go/quic-go"
)

// Conn is a QUIC connection as produced by quic-go.
type Conn = quicgo.Conn

// EarlyListener accepts incoming QUIC connections.
// Its method set matches the listener expected by the HTTP/3 server.
type EarlyListener interface {
	// Accept waits for and returns the next incoming connection.
	Accept(ctx context.Context) (*Conn, error)

	// Addr returns the listener's network address.
	Addr() net.Addr

	// Close closes the listener and stops accepting new connections.
	Close() error
}

// ListenAddrFunc is a function type for creating a QUIC listener.
type ListenAddrFunc func(addr string, tlsConfig *tls.Config, quicConfig *Config) (EarlyListener, error)

var _ ListenAddrFunc = ListenAddrEarly

// ListenAddrEarly binds a UDP socket to addr and listens for QUIC connections.
// Connections are returned before the handshake completes; application data is
// only read once the peer's Finished message has been verified.
func ListenAddrEarly(addr string, tlsConfig *tls.Config, quicConfig *Config) (EarlyListener, error) {
	ln, err := quicgo.ListenAddrEarly(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}
	return ln, nil
}
