package h3mtls

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"software.sslmate.com/src/go-pkcs12"
)

// StoreConfig names a key store or trust store on disk.
//
// The format is chosen from the file extension: ".p12" and ".pfx" are PKCS#12,
// ".pem" and ".crt" are PEM. A PEM key store keeps its private key in KeyPath.
type StoreConfig struct {
	Path     string
	Password string
	KeyPath  string
}

type storeFormat int

const (
	formatUnknown storeFormat = iota
	formatPKCS12
	formatPEM
)

func detectFormat(path string) storeFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return formatPKCS12
	case ".pem", ".crt":
		return formatPEM
	default:
		return formatUnknown
	}
}

// Identity is a private key with its certificate chain.
// It proves the holder's identity during the TLS handshake and is read-only
// once loaded.
type Identity struct {
	certificate tls.Certificate
	leaf        *x509.Certificate
	chain       []*x509.Certificate
}

// NewIdentity assembles an Identity from a private key, its leaf certificate and
// any intermediate certificates.
func NewIdentity(key crypto.PrivateKey, leaf *x509.Certificate, chain ...*x509.Certificate) (*Identity, error) {
	if leaf == nil {
		return nil, errors.New("h3mtls: identity requires a certificate")
	}
	if _, ok := key.(crypto.Signer); !ok {
		return nil, fmt.Errorf("h3mtls: unsupported private key type %T", key)
	}

	raw := make([][]byte, 0, 1+len(chain))
	raw = append(raw, leaf.Raw)
	for _, c := range chain {
		raw = append(raw, c.Raw)
	}

	return &Identity{
		certificate: tls.Certificate{
			Certificate: raw,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		leaf:  leaf,
		chain: slices.Clone(chain),
	}, nil
}

// Certificate returns the identity as a tls.Certificate.
func (id *Identity) Certificate() tls.Certificate {
	cert := id.certificate
	cert.Certificate = slices.Clone(id.certificate.Certificate)
	return cert
}

// Leaf returns the identity's own certificate.
func (id *Identity) Leaf() *x509.Certificate {
	return id.leaf
}

// Subject returns the distinguished name of the leaf certificate.
func (id *Identity) Subject() string {
	return id.leaf.Subject.String()
}

// LoadIdentity reads a key store.
// A missing file, a wrong password or an unsupported format is reported as a
// *ConfigurationError.
func LoadIdentity(sc StoreConfig) (*Identity, error) {
	const op = "load key store"

	if sc.Path == "" {
		return nil, &ConfigurationError{Op: op, Err: errors.New("path is required")}
	}

	switch detectFormat(sc.Path) {
	case formatPKCS12:
		data, err := os.ReadFile(sc.Path)
		if err != nil {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
		}

		key, leaf, chain, err := pkcs12.DecodeChain(data, sc.Password)
		if err != nil {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
		}

		id, err := NewIdentity(key, leaf, chain...)
		if err != nil {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
		}
		return id, nil
	case formatPEM:
		if sc.KeyPath == "" {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: errors.New("key path is required for PEM key stores")}
		}

		cert, err := tls.LoadX509KeyPair(sc.Path, sc.KeyPath)
		if err != nil {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
		}

		certs, err := parseCertificates(cert.Certificate)
		if err != nil {
			return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
		}
		cert.Leaf = certs[0]

		return &Identity{
			certificate: cert,
			leaf:        certs[0],
			chain:       certs[1:],
		}, nil
	default:
		return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: errors.New("unsupported store format")}
	}
}

func parseCertificates(raw [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(raw))
	for _, der := range raw {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, nil
}

// Trust is a set of certificates considered trustworthy for validating a
// peer's certificate. It is read-only once loaded.
type Trust struct {
	certs []*x509.Certificate
	pool  *x509.CertPool
}

// NewTrust builds Trust Material from certificates.
func NewTrust(certs ...*x509.Certificate) (*Trust, error) {
	if len(certs) == 0 {
		return nil, errors.New("h3mtls: trust material requires at least one certificate")
	}

	pool := x509.NewCertPool()
	for _, c := range certs {
		if c == nil {
			return nil, errors.New("h3mtls: nil certificate in trust material")
		}
		pool.AddCert(c)
	}

	return &Trust{
		certs: slices.Clone(certs),
		pool:  pool,
	}, nil
}

// Certificates returns a copy of the trusted certificates.
func (t *Trust) Certificates() []*x509.Certificate {
	return slices.Clone(t.certs)
}

// Pool returns a copy of the trusted certificates as a pool.
func (t *Trust) Pool() *x509.CertPool {
	return t.pool.Clone()
}

// Len returns the number of trusted certificates.
func (t *Trust) Len() int {
	return len(t.certs)
}

// Contains reports whether cert is one of the trusted certificates.
func (t *Trust) Contains(cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}
	return slices.ContainsFunc(t.certs, cert.Equal)
}

// LoadTrust reads a trust store.
//
// A PKCS#12 trust store holds Java trusted certificate entries. When the file is
// a key store instead, its certificates are trusted, so a self-signed key store
// can act as its own trust store.
func LoadTrust(sc StoreConfig) (*Trust, error) {
	const op = "load trust store"

	if sc.Path == "" {
		return nil, &ConfigurationError{Op: op, Err: errors.New("path is required")}
	}

	format := detectFormat(sc.Path)
	if format == formatUnknown {
		return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: errors.New("unsupported store format")}
	}

	data, err := os.ReadFile(sc.Path)
	if err != nil {
		return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
	}

	var certs []*x509.Certificate
	switch format {
	case formatPKCS12:
		certs, err = decodePKCS12Trust(data, sc.Password)
	case formatPEM:
		certs, err = decodePEMCertificates(data)
	}
	if err != nil {
		return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
	}

	trust, err := NewTrust(certs...)
	if err != nil {
		return nil, &ConfigurationError{Op: op, Path: sc.Path, Err: err}
	}
	return trust, nil
}

func decodePKCS12Trust(data []byte, password string) ([]*x509.Certificate, error) {
	certs, err := pkcs12.DecodeTrustStore(data, password)
	if err == nil {
		return certs, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, err
	}

	_, leaf, chain, kerr := pkcs12.DecodeChain(data, password)
	if kerr != nil {
		return nil, err
	}
	return append([]*x509.Certificate{leaf}, chain...), nil
}

func decodePEMCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}

	if len(certs) == 0 {
		return nil, errors.New("no certificates found")
	}
	return certs, nil
}
