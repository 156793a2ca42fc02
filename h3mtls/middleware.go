package h3mtls

import (
	"crypto/x509"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the identifier assigned to each request.
const RequestIDHeader = "X-Request-Id"

// checkSNIHost rejects requests whose host is not covered by the server certificate.
func checkSNIHost(leaf *x509.Certificate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		if leaf == nil || host == "" || leaf.VerifyHostname(host) != nil {
			http.Error(w, "Invalid SNI", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setServerHeader(value string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", value)
		next.ServeHTTP(w, r)
	})
}

// logRequests assigns a request ID and logs each completed request.
// A valid UUID in the incoming X-Request-Id header is kept.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		if err != nil {
			id = uuid.New()
		}
		w.Header().Set(RequestIDHeader, id.String())

		reqLogger := logger.With(
			"request_id", id.String(),
			"remote_address", r.RemoteAddr,
		)
		if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
			reqLogger = reqLogger.With("peer", r.TLS.PeerCertificates[0].Subject.String())
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		reqLogger.Info("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
