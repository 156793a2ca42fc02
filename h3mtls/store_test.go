package h3mtls

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OkutaniDaichi0106/h3mtls/internal/pki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

func TestLoadIdentity(t *testing.T) {
	layout := newTestLayout(t)

	id, err := LoadIdentity(StoreConfig{Path: layout.ClientKeyStore, Password: layout.Password})
	require.NoError(t, err)

	assert.Equal(t, "client", id.Leaf().Subject.CommonName)
	assert.Contains(t, id.Subject(), "CN=client")

	cert := id.Certificate()
	assert.Len(t, cert.Certificate, 2)
	assert.NotNil(t, cert.PrivateKey)
	assert.Same(t, id.Leaf(), cert.Leaf)
}

func TestLoadIdentity_PEM(t *testing.T) {
	dir := t.TempDir()

	kp, err := pki.SelfSigned(pki.Template{CommonName: "pem"})
	require.NoError(t, err)

	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	require.NoError(t, pki.WritePEM(certPath, keyPath, kp))

	id, err := LoadIdentity(StoreConfig{Path: certPath, KeyPath: keyPath})
	require.NoError(t, err)
	assert.True(t, id.Leaf().Equal(kp.Certificate))
}

func TestLoadIdentity_Errors(t *testing.T) {
	layout := newTestLayout(t)
	dir := t.TempDir()

	unknown := filepath.Join(dir, "store.jks")
	require.NoError(t, os.WriteFile(unknown, []byte("not a store"), 0o600))

	tests := map[string]struct {
		sc     StoreConfig
		target error
	}{
		"empty path": {
			sc: StoreConfig{},
		},
		"missing file": {
			sc:     StoreConfig{Path: filepath.Join(dir, "missing.p12"), Password: layout.Password},
			target: os.ErrNotExist,
		},
		"wrong password": {
			sc:     StoreConfig{Path: layout.ClientKeyStore, Password: "wrong"},
			target: pkcs12.ErrIncorrectPassword,
		},
		"unsupported format": {
			sc: StoreConfig{Path: unknown},
		},
		"PEM without key": {
			sc: StoreConfig{Path: layout.CAPEM},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			id, err := LoadIdentity(tt.sc)
			assert.Nil(t, id)

			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "load key store", cerr.Op)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestLoadTrust(t *testing.T) {
	layout := newTestLayout(t)

	ca, err := LoadTrust(StoreConfig{Path: layout.TrustStore, Password: layout.Password})
	require.NoError(t, err)
	require.Equal(t, 1, ca.Len())
	assert.True(t, ca.Certificates()[0].IsCA)

	fromPEM, err := LoadTrust(StoreConfig{Path: layout.CAPEM})
	require.NoError(t, err)
	assert.True(t, fromPEM.Contains(ca.Certificates()[0]))
}

func TestLoadTrust_KeyStore(t *testing.T) {
	layout := newTestLayout(t)

	trust, err := LoadTrust(StoreConfig{Path: layout.UntrustedKeyStore, Password: layout.Password})
	require.NoError(t, err)

	id, err := LoadIdentity(StoreConfig{Path: layout.UntrustedKeyStore, Password: layout.Password})
	require.NoError(t, err)

	assert.True(t, trust.Contains(id.Leaf()))
}

func TestLoadTrust_Errors(t *testing.T) {
	layout := newTestLayout(t)
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("no certificates here"), 0o600))

	tests := map[string]struct {
		sc     StoreConfig
		target error
	}{
		"empty path": {
			sc: StoreConfig{},
		},
		"missing file": {
			sc:     StoreConfig{Path: filepath.Join(dir, "missing.p12")},
			target: os.ErrNotExist,
		},
		"wrong password": {
			sc:     StoreConfig{Path: layout.TrustStore, Password: "wrong"},
			target: pkcs12.ErrIncorrectPassword,
		},
		"wrong password on key store": {
			sc:     StoreConfig{Path: layout.ClientKeyStore, Password: "wrong"},
			target: pkcs12.ErrIncorrectPassword,
		},
		"PEM without certificates": {
			sc: StoreConfig{Path: empty},
		},
		"unsupported format": {
			sc: StoreConfig{Path: filepath.Join(dir, "trustStore.jks")},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			trust, err := LoadTrust(tt.sc)
			assert.Nil(t, trust)

			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "load trust store", cerr.Op)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestNewTrust(t *testing.T) {
	p := newTestPKI(t)

	_, err := NewTrust()
	assert.Error(t, err)

	_, err = NewTrust(nil)
	assert.Error(t, err)

	trust, err := NewTrust(p.ca.Certificate)
	require.NoError(t, err)

	certs := trust.Certificates()
	certs[0] = p.untrusted.Certificate
	assert.True(t, trust.Contains(p.ca.Certificate))
	assert.False(t, trust.Contains(p.untrusted.Certificate))
	assert.False(t, trust.Contains(nil))
	assert.NotNil(t, trust.Pool())
}

func TestNewIdentity(t *testing.T) {
	p := newTestPKI(t)

	_, err := NewIdentity(p.client.Key, nil)
	assert.Error(t, err)

	_, err = NewIdentity("not a key", p.client.Certificate)
	assert.Error(t, err)

	id, err := NewIdentity(p.client.Key, p.client.Certificate, p.ca.Certificate)
	require.NoError(t, err)

	cert := id.Certificate()
	cert.Certificate[0] = nil
	assert.NotNil(t, id.Certificate().Certificate[0])
}
