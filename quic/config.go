package quic

import (
	"time"

	quicgo "github.com/quic-go/quic-go"
)

// Config contains configuration options for a QUIC connection.
// See github.com/quic-go/quic-go.Config for available options.
type Config = quicgo.Config

// DefaultConfig returns the QUIC settings used when none are configured.
func DefaultConfig() *Config {
	return &Config{
		MaxIdleTimeout:       30 * time.Second,
		HandshakeIdleTimeout: 5 * time.Second,
		KeepAlivePeriod:      10 * time.Second,
	}
}
