package quic

import (
	"context"
	"crypto/tls"

	quicgo "github.com/quic-go/quic-go"
)

// DialAddrFunc is a function type for establishing a QUIC connection to a remote address.
type DialAddrFunc func(ctx context.Context, addr string, tlsConfig *tls.Config, quicConfig *Config) (*Conn, error)

var _ DialAddrFunc = DialAddrEarly

// DialAddrEarly dials addr over a new UDP socket. The socket is closed with
// the connection.
func DialAddrEarly(ctx context.Context, addr string, tlsConfig *tls.Config, quicConfig *Config) (*Conn, error) {
	return quicgo.DialAddrEarly(ctx, addr, tlsConfig, quicConfig)
}
