package h3mtls

import (
	"context"
	"crypto/x509"
	"net"
	"testing"

	"github.com/OkutaniDaichi0106/h3mtls/internal/pki"
	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testPKI struct {
	ca        *pki.KeyPair
	server    *pki.KeyPair
	client    *pki.KeyPair
	untrusted *pki.KeyPair
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()

	ca, err := pki.NewCA("test CA")
	require.NoError(t, err)

	server, err := ca.Issue(pki.Template{
		CommonName: "localhost",
		DNSNames:   []string{"localhost"},
		IPs:        []net.IP{net.IPv4(127, 0, 0, 1)},
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err)

	client, err := ca.Issue(pki.Template{
		CommonName: "client",
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	require.NoError(t, err)

	untrusted, err := pki.SelfSigned(pki.Template{
		CommonName: "not_trusted",
		DNSNames:   []string{"localhost"},
		Usages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	})
	require.NoError(t, err)

	return &testPKI{ca: ca, server: server, client: client, untrusted: untrusted}
}

func (p *testPKI) trust(t *testing.T) *Trust {
	t.Helper()

	trust, err := NewTrust(p.ca.Certificate)
	require.NoError(t, err)
	return trust
}

func identityOf(t *testing.T, kp *pki.KeyPair, chain ...*x509.Certificate) *Identity {
	t.Helper()

	id, err := NewIdentity(kp.Key, kp.Certificate, chain...)
	require.NoError(t, err)
	return id
}

func newTestLayout(t *testing.T) pki.Layout {
	t.Helper()

	layout, err := pki.Generate(t.TempDir(), pki.DefaultPassword)
	require.NoError(t, err)
	return layout
}

var _ quic.EarlyListener = (*MockEarlyListener)(nil)

// MockEarlyListener implements a mock for quic.EarlyListener using mock.Mock
type MockEarlyListener struct {
	mock.Mock
}

func (m *MockEarlyListener) Accept(ctx context.Context) (*quic.Conn, error) {
	args := m.Called(ctx)
	conn, _ := args.Get(0).(*quic.Conn)
	return conn, args.Error(1)
}

func (m *MockEarlyListener) Addr() net.Addr {
	args := m.Called()
	if addr, ok := args.Get(0).(net.Addr); ok {
		return addr
	}
	return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8443}
}

func (m *MockEarlyListener) Close() error {
	args := m.Called()
	return args.Error(0)
}
