package h3mtls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strconv"

	"github.com/OkutaniDaichi0106/h3mtls/quic"
)

var (
	// ErrServerClosed is returned when the server has been closed.
	ErrServerClosed = errors.New("h3mtls: server closed")

	// ErrClientClosed is returned when the client has been closed.
	ErrClientClosed = errors.New("h3mtls: client closed")

	// ErrUnexpectedStatus is returned when a request completes with a status other than 200.
	ErrUnexpectedStatus = errors.New("h3mtls: unexpected status")
)

/*
 * Configuration Errors
 */

// ConfigurationError reports invalid startup configuration: an unreadable
// store, a wrong store password, or an invalid verification policy.
// It is raised before any network activity.
type ConfigurationError struct {
	Op   string
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	msg := "h3mtls: " + e.Op
	if e.Path != "" {
		msg += " " + strconv.Quote(e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

/*
 * Trust Errors
 */

// Reasons carried by UntrustedPeerError.
const (
	ReasonNoTrustMaterial = "no trust material"
	ReasonNoCertificate   = "no certificate presented"
	ReasonUntrustedChain  = "certificate chain not trusted"
	ReasonMissingHost     = "no host to identify"
	ReasonHostMismatch    = "certificate does not match host"
	ReasonRejectedByPeer  = "certificate rejected by peer"
)

// UntrustedPeerError reports a handshake that was aborted because a
// certificate was not trusted. No application data was exchanged.
type UntrustedPeerError struct {
	// Subject is the subject of the offending certificate, if known.
	Subject string
	Reason  string
	Err     error
}

func (e *UntrustedPeerError) Error() string {
	msg := "h3mtls: untrusted peer"
	if e.Subject != "" {
		msg += " " + strconv.Quote(e.Subject)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UntrustedPeerError) Unwrap() error { return e.Err }

/*
 * Transport Errors
 */

// TransportError wraps any lower-layer failure as-is.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "h3mtls: transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Classify maps err onto the error taxonomy.
// Errors that already belong to it are returned unchanged.
// TLS certificate alerts and x509 verification errors become *UntrustedPeerError.
// Anything else becomes *TransportError.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var cerr *ConfigurationError
	if errors.As(err, &cerr) {
		return cerr
	}

	var uerr *UntrustedPeerError
	if errors.As(err, &uerr) {
		return uerr
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		return terr
	}

	if alert, ok := quic.CryptoAlert(err); ok && quic.IsCertificateAlert(alert) {
		return &UntrustedPeerError{Reason: ReasonRejectedByPeer, Err: err}
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
		hostname         x509.HostnameError
	)
	switch {
	case errors.As(err, &hostname):
		return &UntrustedPeerError{Reason: ReasonHostMismatch, Err: err}
	case errors.As(err, &unknownAuthority),
		errors.As(err, &invalid),
		errors.As(err, &verification):
		return &UntrustedPeerError{Reason: ReasonUntrustedChain, Err: err}
	}

	return &TransportError{Err: err}
}
