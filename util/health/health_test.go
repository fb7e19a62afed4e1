package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/util/health"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(status int, message string, err error) func(context.Context, bool) (int, string, error) {
	return func(context.Context, bool) (int, string, error) {
		return status, message, err
	}
}

func TestCheckAll(t *testing.T) {
	ctx := context.Background()

	t.Run("all healthy", func(t *testing.T) {
		status, msg, err := health.CheckAll(ctx, false, []health.Check{
			{Name: "Store", Check: staticCheck(http.StatusOK, "OK", nil)},
			{Name: "Chain", Check: staticCheck(http.StatusOK, `{"status":"200", "dependencies":[]}`, nil)},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(msg), &decoded))
		assert.Equal(t, "200", decoded["status"])
		assert.Len(t, decoded["dependencies"], 2)
	})

	t.Run("one failing", func(t *testing.T) {
		status, msg, err := health.CheckAll(ctx, false, []health.Check{
			{Name: "Store", Check: staticCheck(http.StatusOK, "OK", nil)},
			{Name: "Chain", Check: staticCheck(http.StatusOK, "OK", errors.NewServiceUnavailableError("down"))},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, msg, "down")
	})

	t.Run("no checks", func(t *testing.T) {
		status, _, err := health.CheckAll(ctx, true, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestCheckHTTPServer(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	status, _, err := health.CheckHTTPServer(server.URL+"/", "/health")(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, msg, err := health.CheckHTTPServer(server.URL, "broken")(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, msg, "500")

	closed := httptest.NewServer(mux)
	closed.Close()

	status, _, err = health.CheckHTTPServer(closed.URL, "/health")(ctx, true)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestCheckHTTPServerResponder(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "http://miner.local:9091/health?liveness=true",
		httpmock.NewStringResponder(http.StatusOK, `{"status": "200"}`))
	httpmock.RegisterResponder(http.MethodGet, "http://chain.local:9091/health",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	ctx := context.Background()

	status, msg, err := health.CheckHTTPServer("http://miner.local:9091", "/health?liveness=true")(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, msg, "accepting requests")

	status, msg, err = health.CheckHTTPServer("http://chain.local:9091/", "health")(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, msg, "503")

	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}
