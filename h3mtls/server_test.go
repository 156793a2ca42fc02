package h3mtls

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/quic-go/quic-go/http3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newBlockingListener returns a listener whose Accept blocks until Close is called.
func newBlockingListener() *MockEarlyListener {
	closed := make(chan struct{})
	var once sync.Once

	ln := &MockEarlyListener{}
	ln.On("Addr").Return(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8443}).Maybe()
	ln.On("Accept", mock.Anything).Run(func(mock.Arguments) {
		<-closed
	}).Return(nil, errors.New("listener closed")).Maybe()
	ln.On("Close").Run(func(mock.Arguments) {
		once.Do(func() { close(closed) })
	}).Return(nil)

	return ln
}

func TestServer_Init(t *testing.T) {
	server := &Server{
		Addr:   "localhost:8443",
		Logger: slog.Default(),
	}

	server.init()

	assert.NotNil(t, server.listeners, "listeners map should be initialized")
	require.NotNil(t, server.h3, "HTTP/3 server should be initialized")
	assert.Equal(t, "localhost:8443", server.h3.Addr)
	assert.NotNil(t, server.h3.Handler)
}

func TestServer_InitOnce(t *testing.T) {
	server := &Server{}

	server.init()
	h3 := server.h3
	server.init()
	server.init()

	assert.Same(t, h3, server.h3)
	assert.NotNil(t, server.Logger)
	assert.Equal(t, DefaultAddr, server.h3.Addr)
}

func TestServer_Listen(t *testing.T) {
	original := &tls.Config{MinVersion: tls.VersionTLS13}

	var got *tls.Config
	ln := newBlockingListener()

	server := &Server{
		Addr:      "localhost:0",
		TLSConfig: original,
		ListenFunc: func(addr string, tlsConfig *tls.Config, quicConfig *quic.Config) (quic.EarlyListener, error) {
			assert.Equal(t, "localhost:0", addr)
			got = tlsConfig
			return ln, nil
		},
	}

	l, err := server.Listen()
	require.NoError(t, err)
	assert.Same(t, ln, l)

	require.NotNil(t, got)
	assert.Equal(t, []string{http3.NextProtoH3}, got.NextProtos)
	assert.Empty(t, original.NextProtos, "original TLS config should not be modified")
}

func TestServer_Listen_Errors(t *testing.T) {
	t.Run("no TLS config", func(t *testing.T) {
		server := &Server{}

		_, err := server.Listen()

		var cerr *ConfigurationError
		assert.ErrorAs(t, err, &cerr)
	})

	t.Run("listen failure", func(t *testing.T) {
		cause := errors.New("address in use")
		server := &Server{
			TLSConfig: &tls.Config{},
			ListenFunc: func(string, *tls.Config, *quic.Config) (quic.EarlyListener, error) {
				return nil, cause
			},
		}

		_, err := server.Listen()

		var terr *TransportError
		assert.ErrorAs(t, err, &terr)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("closed server", func(t *testing.T) {
		server := &Server{TLSConfig: &tls.Config{}}
		require.NoError(t, server.Close())

		_, err := server.Listen()
		assert.ErrorIs(t, err, ErrServerClosed)
	})
}

func TestServer_ServeQUICListener(t *testing.T) {
	server := &Server{
		TLSConfig: &tls.Config{},
	}

	ln := newBlockingListener()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeQUICListener(ln)
	}()

	// Give time for the server to start
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, server.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("ServeQUICListener did not return after Close")
	}

	ln.AssertCalled(t, "Close")
}

func TestServer_ServeQUICListener_AcceptError(t *testing.T) {
	server := &Server{
		TLSConfig: &tls.Config{},
	}

	cause := errors.New("accept failed")
	ln := &MockEarlyListener{}
	ln.On("Addr").Return(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8443}).Maybe()
	ln.On("Accept", mock.Anything).Return(nil, cause)
	ln.On("Close").Return(nil).Maybe()

	err := server.ServeQUICListener(ln)
	assert.ErrorIs(t, err, cause)
}

func TestServer_ServeQUICListener_AfterClose(t *testing.T) {
	server := &Server{}
	require.NoError(t, server.Close())

	err := server.ServeQUICListener(&MockEarlyListener{})
	assert.ErrorIs(t, err, ErrServerClosed)

	assert.ErrorIs(t, server.ListenAndServe(), ErrServerClosed)
}

func TestServer_Shutdown(t *testing.T) {
	server := &Server{
		TLSConfig: &tls.Config{},
		Config:    &Config{ShutdownTimeout: time.Second},
	}

	ln := newBlockingListener()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeQUICListener(ln)
	}()

	time.Sleep(50 * time.Millisecond)

	assert.NoError(t, server.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrServerClosed)
	case <-time.After(time.Second):
		t.Fatal("ServeQUICListener did not return after Shutdown")
	}
}

func TestServer_Leaf(t *testing.T) {
	p := newTestPKI(t)

	server := &Server{}
	assert.Nil(t, server.leaf())

	id := identityOf(t, p.server)
	cert := id.Certificate()
	cert.Leaf = nil

	server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	leaf := server.leaf()
	require.NotNil(t, leaf)
	assert.True(t, leaf.Equal(p.server.Certificate))
}

func TestNewServer(t *testing.T) {
	layout := newTestLayout(t)

	tests := map[string]struct {
		opts    ServerOptions
		wantErr bool
	}{
		"peer verification": {
			opts: ServerOptions{
				KeyStore:   StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				TrustStore: StoreConfig{Path: layout.TrustStore, Password: layout.Password},
				Policy:     Policy{VerifyPeer: true},
			},
		},
		"no trust store without peer verification": {
			opts: ServerOptions{
				KeyStore: StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				Policy:   Policy{},
			},
		},
		"no trust store with peer verification": {
			opts: ServerOptions{
				KeyStore: StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				Policy:   Policy{VerifyPeer: true},
			},
			wantErr: true,
		},
		"wrong key store password": {
			opts: ServerOptions{
				KeyStore:   StoreConfig{Path: layout.ServerKeyStore, Password: "wrong"},
				TrustStore: StoreConfig{Path: layout.TrustStore, Password: layout.Password},
				Policy:     Policy{VerifyPeer: true},
			},
			wantErr: true,
		},
		"trust all in production": {
			opts: ServerOptions{
				KeyStore:    StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				Policy:      Policy{TrustAll: true},
				Environment: EnvironmentProduction,
			},
			wantErr: true,
		},
		"endpoint identification": {
			opts: ServerOptions{
				KeyStore:   StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				TrustStore: StoreConfig{Path: layout.TrustStore, Password: layout.Password},
				Policy:     Policy{VerifyPeer: true, EndpointIdentification: EndpointIdentificationHTTPS},
			},
			wantErr: true,
		},
		"unknown endpoint identification": {
			opts: ServerOptions{
				KeyStore: StoreConfig{Path: layout.ServerKeyStore, Password: layout.Password},
				Policy:   Policy{EndpointIdentification: "LDAPS"},
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			server, err := NewServer(tt.opts)
			if tt.wantErr {
				assert.Nil(t, server)

				var cerr *ConfigurationError
				assert.ErrorAs(t, err, &cerr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, server.TLSConfig)
			assert.Equal(t, tls.RequestClientCert, server.TLSConfig.ClientAuth)
			assert.NotNil(t, server.Config)
		})
	}
}
