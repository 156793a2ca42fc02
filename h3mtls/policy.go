package h3mtls

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
)

// EndpointIdentificationHTTPS matches the peer certificate against the target
// host name, as HTTPS clients do (RFC 2818).
const EndpointIdentificationHTTPS = "HTTPS"

// EnvironmentProduction is the environment in which insecure policies are refused.
const EnvironmentProduction = "production"

// Side identifies which end of the connection evaluates a policy.
type Side int

const (
	// ServerSide validates the certificate presented by a client.
	ServerSide Side = iota
	// ClientSide validates the certificate presented by a server.
	ClientSide
)

func (s Side) String() string {
	switch s {
	case ServerSide:
		return "server"
	case ClientSide:
		return "client"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Policy governs how strictly a handshake validates the remote identity.
type Policy struct {
	// VerifyPeer requires the peer's certificate chain to validate against the
	// local Trust Material. When false the chain is not checked at all, which is
	// only acceptable in controlled test environments.
	VerifyPeer bool

	// TrustAll accepts every peer unconditionally and takes precedence over all
	// other checks. Development only.
	TrustAll bool

	// EndpointIdentification, when set, requires the peer's certificate to match
	// the connection's target host, independent of chain trust.
	// Only EndpointIdentificationHTTPS is supported, and only by clients.
	EndpointIdentification string

	// SNIHostCheck requires the host of each request to match the server
	// certificate. It is enforced per request by the server.
	SNIHostCheck bool
}

// Validate reports an unsupported endpoint identification algorithm.
func (p Policy) Validate() error {
	switch strings.ToUpper(p.EndpointIdentification) {
	case "", EndpointIdentificationHTTPS:
		return nil
	default:
		return &ConfigurationError{
			Op:  "validate policy",
			Err: fmt.Errorf("unsupported endpoint identification algorithm %q", p.EndpointIdentification),
		}
	}
}

// Insecure reports whether the policy can admit a peer whose certificate does
// not chain to the Trust Material.
func (p Policy) Insecure() bool {
	return p.TrustAll || !p.VerifyPeer
}

// CheckEnvironment refuses insecure policies in the production environment.
func (p Policy) CheckEnvironment(env string) error {
	if !strings.EqualFold(env, EnvironmentProduction) {
		return nil
	}

	switch {
	case p.TrustAll:
		return &ConfigurationError{Op: "validate policy", Err: errors.New("trust-all is forbidden in production")}
	case !p.VerifyPeer:
		return &ConfigurationError{Op: "validate policy", Err: errors.New("peer verification cannot be disabled in production")}
	}
	return nil
}

// Admit decides whether a handshake may complete.
//
// chain is the certificate chain presented by the peer, leaf first. host is the
// name the connection targets; it is only consulted when EndpointIdentification
// is set. usage is the extended key usage the peer's leaf must carry.
//
// Admit is a pure function of its arguments; a nil error admits the peer.
func (p Policy) Admit(chain []*x509.Certificate, trust *Trust, host string, usage x509.ExtKeyUsage) error {
	if p.TrustAll {
		return nil
	}

	var leaf *x509.Certificate
	if len(chain) > 0 {
		leaf = chain[0]
	}

	if p.VerifyPeer {
		if leaf == nil {
			return &UntrustedPeerError{Reason: ReasonNoCertificate}
		}
		if trust == nil {
			return &UntrustedPeerError{Subject: leaf.Subject.String(), Reason: ReasonNoTrustMaterial}
		}

		intermediates := x509.NewCertPool()
		for _, c := range chain[1:] {
			intermediates.AddCert(c)
		}

		_, err := leaf.Verify(x509.VerifyOptions{
			Roots:         trust.pool,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{usage},
		})
		if err != nil {
			return &UntrustedPeerError{Subject: leaf.Subject.String(), Reason: ReasonUntrustedChain, Err: err}
		}
	}

	if p.EndpointIdentification != "" {
		if leaf == nil {
			return &UntrustedPeerError{Reason: ReasonNoCertificate}
		}
		if host == "" {
			return &UntrustedPeerError{Subject: leaf.Subject.String(), Reason: ReasonMissingHost}
		}
		if err := leaf.VerifyHostname(host); err != nil {
			return &UntrustedPeerError{Subject: leaf.Subject.String(), Reason: ReasonHostMismatch, Err: err}
		}
	}

	return nil
}
