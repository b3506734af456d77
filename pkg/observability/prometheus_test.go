package observability_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blockaudit/pkg/observability"
)

func TestServeMetrics_ServesAndStops(t *testing.T) {
	t.Parallel()

	_, handler, err := observability.NewPrometheusReader()
	require.NoError(t, err)

	srv, err := observability.ServeMetrics("127.0.0.1:0", handler, observability.DiscardLogger())
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		"http://"+srv.Addr()+observability.MetricsPath, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestServeMetrics_ListenError(t *testing.T) {
	t.Parallel()

	_, err := observability.ServeMetrics("256.0.0.1:bad", http.NotFoundHandler(), observability.DiscardLogger())
	require.Error(t, err)
}
