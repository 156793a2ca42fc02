package h3mtls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"

	"github.com/quic-go/quic-go/http3"
)

// AdmissionFunc observes the outcome of each admission decision.
// subject is the peer's leaf subject, or empty if none was presented.
type AdmissionFunc func(side Side, subject string, err error)

// ServerTLSConfig builds the TLS configuration of an HTTP/3 listener.
//
// Client certificates are always requested; whether they must verify is
// decided by policy through Policy.Admit.
func ServerTLSConfig(identity *Identity, trust *Trust, policy Policy, observe AdmissionFunc) (*tls.Config, error) {
	if identity == nil {
		return nil, &ConfigurationError{Op: "build server TLS config", Err: errors.New("server identity is required")}
	}
	if err := checkServerPolicy(policy, "build server TLS config"); err != nil {
		return nil, err
	}
	if err := requireTrust(trust, policy, "build server TLS config"); err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{identity.Certificate()},
		NextProtos:   []string{http3.NextProtoH3},
		ClientAuth:   tls.RequestClientCert,
		VerifyConnection: func(cs tls.ConnectionState) error {
			err := policy.Admit(cs.PeerCertificates, trust, "", x509.ExtKeyUsageClientAuth)
			notify(observe, ServerSide, cs.PeerCertificates, err)
			return err
		},
	}, nil
}

// HostVerifier returns the VerifyConnection hook of a connection to host.
type HostVerifier func(host string) func(tls.ConnectionState) error

// ClientVerifier returns the check a client applies to the server certificate.
// An empty host falls back to the SNI value of the connection, which
// crypto/tls leaves empty for IP addresses.
func ClientVerifier(trust *Trust, policy Policy, observe AdmissionFunc) HostVerifier {
	return func(host string) func(tls.ConnectionState) error {
		return func(cs tls.ConnectionState) error {
			target := host
			if target == "" {
				target = cs.ServerName
			}

			err := policy.Admit(cs.PeerCertificates, trust, target, x509.ExtKeyUsageServerAuth)
			notify(observe, ClientSide, cs.PeerCertificates, err)
			return err
		}
	}
}

// ClientTLSConfig builds the TLS configuration of an HTTP/3 client.
// identity may be nil when the client does not authenticate itself.
//
// Its VerifyConnection identifies the server by SNI only. Client binds the
// dialed host instead when VerifyHost is set, as NewClient does.
func ClientTLSConfig(identity *Identity, trust *Trust, policy Policy, observe AdmissionFunc) (*tls.Config, error) {
	if err := requireTrust(trust, policy, "build client TLS config"); err != nil {
		return nil, err
	}

	conf := &tls.Config{
		MinVersion: tls.VersionTLS13,
		NextProtos: []string{http3.NextProtoH3},
		// Chain and host checks run in VerifyConnection through Policy.Admit.
		InsecureSkipVerify: true,
		VerifyConnection:   ClientVerifier(trust, policy, observe)(""),
	}
	if identity != nil {
		conf.Certificates = []tls.Certificate{identity.Certificate()}
	}

	return conf, nil
}

// checkServerPolicy refuses endpoint identification: a server has no target
// host to match a client certificate against.
func checkServerPolicy(policy Policy, op string) error {
	if policy.EndpointIdentification != "" {
		return &ConfigurationError{Op: op, Err: errors.New("endpoint identification applies to clients only")}
	}
	return nil
}

func requireTrust(trust *Trust, policy Policy, op string) error {
	if trust == nil && policy.VerifyPeer && !policy.TrustAll {
		return &ConfigurationError{Op: op, Err: errors.New("peer verification requires a trust store")}
	}
	return nil
}

func notify(observe AdmissionFunc, side Side, chain []*x509.Certificate, err error) {
	if observe == nil {
		return
	}

	var subject string
	if len(chain) > 0 {
		subject = chain[0].Subject.String()
	}
	observe(side, subject, err)
}
