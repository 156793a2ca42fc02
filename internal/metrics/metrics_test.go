package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OkutaniDaichi0106/h3mtls/h3mtls"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAdmission(t *testing.T) {
	m, err := New("test")
	require.NoError(t, err)

	m.ObserveAdmission(h3mtls.ServerSide, "CN=client", nil)
	m.ObserveAdmission(h3mtls.ServerSide, "CN=not_trusted", errors.New("untrusted"))
	m.ObserveAdmission(h3mtls.ServerSide, "", errors.New("no certificate"))
	m.ObserveAdmission(h3mtls.ClientSide, "CN=localhost", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("server", OutcomeAdmitted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues("server", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("client", OutcomeAdmitted)))
}

func TestMiddleware(t *testing.T) {
	m, err := New("test")
	require.NoError(t, err)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "ok")
	}))

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("404", "get")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestHandler(t *testing.T) {
	m, err := New("h3mtls")
	require.NoError(t, err)

	m.ObserveAdmission(h3mtls.ServerSide, "CN=client", nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	rsp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer rsp.Body.Close()

	body, err := io.ReadAll(rsp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Contains(t, string(body), "# TYPE h3mtls_admissions_total counter")
	assert.Contains(t, string(body), `h3mtls_admissions_total{outcome="admitted",side="server"} 1`)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestNew_Independent(t *testing.T) {
	a, err := New("test")
	require.NoError(t, err)
	b, err := New("test")
	require.NoError(t, err)

	a.ObserveAdmission(h3mtls.ServerSide, "", nil)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.admissions.WithLabelValues("server", OutcomeAdmitted)))
	assert.NotSame(t, a.Registry(), b.Registry())
}
