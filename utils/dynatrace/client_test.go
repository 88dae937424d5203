package dynatrace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtgate/utils/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.UpstreamConfig{
		EnvURL:         baseURL,
		APIToken:       "secret-token",
		VerifySSL:      true,
		MaxConnections: 5,
	})
}

func TestGetSendsAuthAndPath(t *testing.T) {
	var gotPath, gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("from")
		w.Write([]byte(`{"totalCount": 0}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	params := url.Values{"from": {"-72h"}}

	raw, err := client.Get(context.Background(), "problems", params)
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalCount": 0}`, string(raw))
	assert.Equal(t, "/api/v2/problems", gotPath)
	assert.Equal(t, "Api-Token secret-token", gotAuth)
	assert.Equal(t, "-72h", gotQuery)
}

func TestGetConfigUsesConfigRoot(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"values": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetConfig(context.Background(), "managementZones", nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/config/v1/managementZones", gotPath)
}

func TestGetReturnsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "token scope"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Get(context.Background(), "entities", nil)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusForbidden, upErr.Status)
	assert.Contains(t, upErr.Body, "token scope")
}

func TestGetRetriesOnceOnTransportError(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Kill the connection mid-request to force a transport error
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	raw, err := client.Get(context.Background(), "entities", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(raw))
	assert.Equal(t, int64(2), hits.Load())
}

func TestGetWrapsPersistentTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listens anymore

	client := newTestClient(server.URL)
	_, err := client.Get(context.Background(), "entities", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Error(t, errors.Unwrap(netErr))
}

func TestRequestCountTracksEveryAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.Zero(t, client.RequestCount())

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "entities", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), client.RequestCount())
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/config/v1/managementZones", r.URL.Path)
		w.Write([]byte(`{"values": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.NoError(t, client.Ping(context.Background()))
}
