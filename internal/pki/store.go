package pki

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"software.sslmate.com/src/go-pkcs12"
)

// DefaultPassword protects the generated stores.
const DefaultPassword = "password"

// WriteKeyStore writes kp and its chain to a password-protected PKCS#12 file.
func WriteKeyStore(path, password string, kp *KeyPair, chain ...*x509.Certificate) error {
	data, err := pkcs12.Modern.Encode(kp.Key, kp.Certificate, chain, password)
	if err != nil {
		return fmt.Errorf("pki: encode key store: %w", err)
	}
	return writeFile(path, data)
}

// WriteTrustStore writes certs as trusted certificate entries of a
// password-protected PKCS#12 file.
func WriteTrustStore(path, password string, certs ...*x509.Certificate) error {
	data, err := pkcs12.Modern.EncodeTrustStore(certs, password)
	if err != nil {
		return fmt.Errorf("pki: encode trust store: %w", err)
	}
	return writeFile(path, data)
}

// WritePEM writes the certificate and the PKCS#8 private key of kp as PEM.
func WritePEM(certPath, keyPath string, kp *KeyPair) error {
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: kp.Certificate.Raw})
	if err := writeFile(certPath, certPEM); err != nil {
		return err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(kp.Key)
	if err != nil {
		return fmt.Errorf("pki: marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return writeFile(keyPath, keyPEM)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pki: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("pki: %w", err)
	}
	return nil
}

// Layout locates the stores written by Generate.
type Layout struct {
	Dir      string
	Password string

	// TrustStore holds the CA certificate.
	TrustStore string

	// ServerKeyStore holds the server identity for localhost, signed by the CA.
	ServerKeyStore string

	// ClientKeyStore holds a client identity signed by the CA.
	ClientKeyStore string

	// UntrustedKeyStore holds a self-signed client identity the CA never issued.
	UntrustedKeyStore string

	// CAPEM holds the CA certificate as PEM.
	CAPEM string
}

// NewLayout returns the store locations under dir.
func NewLayout(dir, password string) Layout {
	return Layout{
		Dir:               dir,
		Password:          password,
		TrustStore:        filepath.Join(dir, "trustStore.p12"),
		ServerKeyStore:    filepath.Join(dir, "localhost", "localhost.p12"),
		ClientKeyStore:    filepath.Join(dir, "client", "client.p12"),
		UntrustedKeyStore: filepath.Join(dir, "not_trusted", "not_trusted.p12"),
		CAPEM:             filepath.Join(dir, "ca.pem"),
	}
}

// Generate creates a CA, a server identity, a trusted client identity and an
// untrusted self-signed identity, and writes them under dir.
// Existing files are overwritten.
func Generate(dir, password string) (Layout, error) {
	layout := NewLayout(dir, password)

	ca, err := NewCA("h3mtls test CA")
	if err != nil {
		return Layout{}, err
	}

	server, err := ca.Issue(Template{
		CommonName: "localhost",
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return Layout{}, err
	}

	client, err := ca.Issue(Template{
		CommonName: "client",
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		return Layout{}, err
	}

	untrusted, err := SelfSigned(Template{
		CommonName: "not_trusted",
		DNSNames:   []string{"localhost"},
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return Layout{}, err
	}

	if err := WriteTrustStore(layout.TrustStore, password, ca.Certificate); err != nil {
		return Layout{}, err
	}
	if err := WriteKeyStore(layout.ServerKeyStore, password, server, ca.Certificate); err != nil {
		return Layout{}, err
	}
	if err := WriteKeyStore(layout.ClientKeyStore, password, client, ca.Certificate); err != nil {
		return Layout{}, err
	}
	if err := WriteKeyStore(layout.UntrustedKeyStore, password, untrusted); err != nil {
		return Layout{}, err
	}

	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.Certificate.Raw})
	if err := writeFile(layout.CAPEM, caPEM); err != nil {
		return Layout{}, err
	}

	return layout, nil
}
