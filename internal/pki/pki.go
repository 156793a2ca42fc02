// Package pki generates the certificates and stores used by the server, the
// client scenarios and the tests.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 365 * 24 * time.Hour

// KeyPair is a generated certificate with its private key.
type KeyPair struct {
	Key         *ecdsa.PrivateKey
	Certificate *x509.Certificate
}

// Template describes a certificate to generate.
type Template struct {
	CommonName string
	DNSNames   []string
	IPs        []net.IP

	// Usages lists the extended key usages of the certificate.
	Usages []x509.ExtKeyUsage

	// Validity defaults to DefaultValidity.
	Validity time.Duration
}

// NewCA generates a self-signed certificate authority.
func NewCA(commonName string) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pki: generate CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"h3mtls"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(DefaultValidity),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	return create(tmpl, tmpl, key, key)
}

// Issue generates a certificate signed by the CA.
func (ca *KeyPair) Issue(t Template) (*KeyPair, error) {
	if !ca.Certificate.IsCA {
		return nil, errors.New("pki: issuer is not a certificate authority")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pki: generate key: %w", err)
	}

	tmpl, err := leafTemplate(t)
	if err != nil {
		return nil, err
	}

	return create(tmpl, ca.Certificate, key, ca.Key)
}

// SelfSigned generates a certificate that is its own issuer.
func SelfSigned(t Template) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("pki: generate key: %w", err)
	}

	tmpl, err := leafTemplate(t)
	if err != nil {
		return nil, err
	}
	tmpl.BasicConstraintsValid = true

	return create(tmpl, tmpl, key, key)
}

func leafTemplate(t Template) (*x509.Certificate, error) {
	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	validity := t.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}

	now := time.Now()
	return &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   t.CommonName,
			Organization: []string{"h3mtls"},
		},
		NotBefore:   now.Add(-time.Hour),
		NotAfter:    now.Add(validity),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: t.Usages,
		DNSNames:    t.DNSNames,
		IPAddresses: t.IPs,
	}, nil
}

func create(tmpl, parent *x509.Certificate, key *ecdsa.PrivateKey, signer *ecdsa.PrivateKey) (*KeyPair, error) {
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("pki: create certificate %q: %w", tmpl.Subject.CommonName, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("pki: parse certificate: %w", err)
	}

	return &KeyPair{Key: key, Certificate: cert}, nil
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("pki: generate serial number: %w", err)
	}
	return serial, nil
}
