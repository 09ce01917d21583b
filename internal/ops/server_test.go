package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/lifeweeks/core/buildinfo"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	broken := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name   string
		checks []Check
		code   int
		status string
	}{
		{name: "no checks", code: http.StatusOK, status: "ok"},
		{name: "healthy db", checks: []Check{{Name: "users", Pinger: healthy}}, code: http.StatusOK, status: "ok"},
		{name: "broken db", checks: []Check{{Name: "users", Pinger: healthy}, {Name: "sessions", Pinger: broken}}, code: http.StatusServiceUnavailable, status: "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(New(Options{Gatherer: prometheus.NewRegistry(), Checks: tc.checks}).Router())
			defer srv.Close()

			res, err := http.Get(srv.URL + "/healthz")
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tc.code, res.StatusCode)

			var body healthResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, buildinfo.Current(), body.Build)
			for _, c := range tc.checks {
				assert.Contains(t, []string{"ok", "fail"}, body.Checks[c.Name])
			}
		})
	}
}

func TestMetricsExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "lifeweeks_test_total", Help: "test"}).Add(3)

	srv := httptest.NewServer(New(Options{Gatherer: reg}).Router())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "lifeweeks_test_total 3")
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Options{Listen: "127.0.0.1:0", Gatherer: prometheus.NewRegistry()})
	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown(context.Background()))

	disabled := New(Options{})
	require.NoError(t, disabled.Start())
	require.NoError(t, disabled.Shutdown(context.Background()))
}
