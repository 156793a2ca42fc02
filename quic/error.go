package quic

import (
	"crypto/tls"
	"errors"

	quicgo "github.com/quic-go/quic-go"
)

// TransportError represents a QUIC transport layer error.
type TransportError = quicgo.TransportError

// ApplicationError represents an application-level error in QUIC.
type ApplicationError = quicgo.ApplicationError

// IdleTimeoutError indicates that the connection timed out due to inactivity.
type IdleTimeoutError = quicgo.IdleTimeoutError

// HandshakeTimeoutError indicates that the handshake did not complete in time.
type HandshakeTimeoutError = quicgo.HandshakeTimeoutError

// TransportErrorCode identifies transport-layer protocol errors.
type TransportErrorCode = quicgo.TransportErrorCode

// TLS alerts are carried in the transport error code space as 0x100 + alert
// (RFC 9001, section 4.8).
const cryptoErrorBase TransportErrorCode = 0x100

// TLS alert descriptions that signal a rejected certificate (RFC 8446, section 6).
const (
	alertBadCertificate         uint8 = 42
	alertUnsupportedCertificate uint8 = 43
	alertCertificateRevoked     uint8 = 44
	alertCertificateExpired     uint8 = 45
	alertCertificateUnknown     uint8 = 46
	alertUnknownCA              uint8 = 48
	alertCertificateRequired    uint8 = 116
)

// CryptoAlert reports the TLS alert carried by err, if err is a QUIC crypto error.
func CryptoAlert(err error) (tls.AlertError, bool) {
	var terr *TransportError
	if !errors.As(err, &terr) {
		return 0, false
	}
	if !terr.ErrorCode.IsCryptoError() {
		return 0, false
	}
	return tls.AlertError(uint8(terr.ErrorCode - cryptoErrorBase)), true
}

// IsCertificateAlert reports whether alert rejects a peer certificate.
func IsCertificateAlert(alert tls.AlertError) bool {
	switch uint8(alert) {
	case alertBadCertificate,
		alertUnsupportedCertificate,
		alertCertificateRevoked,
		alertCertificateExpired,
		alertCertificateUnknown,
		alertUnknownCA,
		alertCertificateRequired:
		return true
	default:
		return false
	}
}
