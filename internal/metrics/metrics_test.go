package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestRouter_ServesRegistryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	events := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pylot_events_total",
		Help: "events",
	})
	require.NoError(t, reg.Register(events))
	events.Inc()

	ts := httptest.NewServer(router(reg))
	defer ts.Close()

	code, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "pylot_events_total 1")

	code, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_NilRegistryUsesGlobal(t *testing.T) {
	PriceUpdates.Inc()

	ts := httptest.NewServer(router(nil))
	defer ts.Close()

	code, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "pylot_price_updates_total")
}
