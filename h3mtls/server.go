package h3mtls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/OkutaniDaichi0106/h3mtls/quic"
	"github.com/quic-go/quic-go/http3"
)

// Server is an HTTP/3 server whose TLS configuration decides which clients
// are admitted.
//
// A Server is usually built with NewServer; a zero Server with TLSConfig set is
// also usable. It must not be copied after first use.
type Server struct {
	/*
	 * Server's Address
	 */
	Addr string

	/*
	 * TLS configuration
	 */
	TLSConfig *tls.Config

	/*
	 * QUIC configuration
	 */
	QUICConfig *quic.Config

	/*
	 * Request handler
	 * If nil, every request is answered with 404 Not Found.
	 */
	Handler http.Handler

	/*
	 * HTTP Configuration
	 * It is copied on first use; later changes have no effect.
	 */
	Config *Config

	/*
	 * Logger
	 */
	Logger *slog.Logger

	// ListenFunc creates the QUIC listener. If nil, quic.ListenAddrEarly is used.
	ListenFunc quic.ListenAddrFunc

	mu        sync.Mutex
	listeners map[quic.EarlyListener]struct{}

	config *Config

	h3 *http3.Server

	initOnce sync.Once

	inShutdown atomic.Bool
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		s.listeners = make(map[quic.EarlyListener]struct{})

		if s.Logger == nil {
			s.Logger = slog.New(slog.DiscardHandler)
		}
		s.Logger = s.Logger.With("address", s.addr())

		s.config = s.Config.Clone()

		s.h3 = &http3.Server{
			Addr:       s.addr(),
			TLSConfig:  s.TLSConfig,
			QUICConfig: s.QUICConfig,
			Handler:    s.handler(),
			Logger:     s.Logger,
		}

		s.Logger.Debug("initialized server")
	})
}

func (s *Server) addr() string {
	if s.Addr == "" {
		return DefaultAddr
	}
	return s.Addr
}

// handler wraps the application handler with the server's request customizations.
func (s *Server) handler() http.Handler {
	var h http.Handler = http.NotFoundHandler()
	if s.Handler != nil {
		h = s.Handler
	}

	if s.config.sniHostCheck() {
		h = checkSNIHost(s.leaf(), h)
	}
	if value := s.config.serverHeader(); value != "" {
		h = setServerHeader(value, h)
	}

	return logRequests(s.Logger, h)
}

// leaf returns the server certificate the SNI host check compares against.
func (s *Server) leaf() *x509.Certificate {
	if s.TLSConfig == nil || len(s.TLSConfig.Certificates) == 0 {
		return nil
	}

	cert := s.TLSConfig.Certificates[0]
	if cert.Leaf != nil {
		return cert.Leaf
	}
	if len(cert.Certificate) == 0 {
		return nil
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil
	}
	return leaf
}

// Listen binds the server's UDP address and returns the QUIC listener.
// The listener is not served until ServeQUICListener is called.
func (s *Server) Listen() (quic.EarlyListener, error) {
	if s.shuttingDown() {
		return nil, ErrServerClosed
	}

	s.init()

	if s.TLSConfig == nil {
		return nil, &ConfigurationError{Op: "listen", Path: s.addr(), Err: errors.New("TLS configuration is required for HTTP/3")}
	}

	// Clone the TLS config to avoid modifying the original
	tlsConfig := s.TLSConfig.Clone()
	if len(tlsConfig.NextProtos) == 0 {
		tlsConfig.NextProtos = []string{http3.NextProtoH3}
	}

	listen := s.ListenFunc
	if listen == nil {
		listen = quic.ListenAddrEarly
	}

	ln, err := listen(s.addr(), tlsConfig, s.QUICConfig)
	if err != nil {
		s.Logger.Error("failed to start QUIC listener", "error", err)
		return nil, &TransportError{Err: err}
	}

	s.Logger.Info("listening for HTTP/3 connections", "local_address", ln.Addr().String())

	return ln, nil
}

// ServeQUICListener serves HTTP/3 on ln until the listener fails or the server
// is closed. After Close or Shutdown it returns ErrServerClosed.
func (s *Server) ServeQUICListener(ln quic.EarlyListener) error {
	if s.shuttingDown() {
		return ErrServerClosed
	}

	s.init()

	s.addListener(ln)
	defer s.removeListener(ln)

	err := s.h3.ServeListener(ln)
	if s.shuttingDown() || errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}
	if err != nil {
		s.Logger.Error("failed to serve QUIC listener", "error", err)
	}
	return err
}

// ListenAndServe listens on Addr and serves HTTP/3 until the server is closed.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.ServeQUICListener(ln)
}

// Close immediately closes all listeners and active connections.
func (s *Server) Close() error {
	s.inShutdown.Store(true)

	s.init()

	s.Logger.Info("closing server")

	err := s.h3.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	for ln := range s.listeners {
		ln.Close()
	}

	return err
}

// Shutdown closes the server, giving up when ctx is done.
// If ctx has no deadline, Config.ShutdownTimeout applies.
func (s *Server) Shutdown(ctx context.Context) error {
	s.init()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.shutdownTimeout())
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.Logger.Warn("shutdown timed out", "error", ctx.Err())
		return ctx.Err()
	}
}

func (s *Server) addListener(ln quic.EarlyListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners[ln] = struct{}{}
}

func (s *Server) removeListener(ln quic.EarlyListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, ln)
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}
