// Package quic is the thin QUIC layer the HTTP/3 server and client build on.
//
// It re-exports the quic-go types that callers need (Config, Conn and the
// error types) and defines the EarlyListener interface so tests can substitute
// a listener without binding a UDP socket.
//
// To listen for QUIC connections:
//
//	ln, err := quic.ListenAddrEarly("localhost:8443", tlsConfig, quic.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ln.Close()
//
// # Errors
//
// A TLS handshake failure surfaces as a TransportError whose code lies in the
// crypto error range (0x100-0x1ff). CryptoAlert extracts the TLS alert and
// IsCertificateAlert reports whether the alert rejected a certificate.
//
// For more information about QUIC, see RFC 9000:
// https://datatracker.ietf.org/doc/html/rfc9000
package quic
