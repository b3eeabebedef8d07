package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	httpClient := &http.Client{Timeout: 20 * time.Millisecond}
	_, err := doGet(context.Background(), httpClient, server.URL, nil, "")
	require.Error(t, err)
	var timeout *APITimeoutError
	require.ErrorAs(t, err, &timeout)
}

func TestDoRequestConnectionFailure(t *testing.T) {
	// Nothing listens on this port.
	httpClient := &http.Client{Timeout: time.Second}
	_, err := doGet(context.Background(), httpClient, "http://127.0.0.1:1", nil, "")
	require.Error(t, err)
	var connection *APIConnectionError
	require.ErrorAs(t, err, &connection)
}

func TestDoRequestSendsAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	data, err := doGet(context.Background(), server.Client(), server.URL, nil, "secret")
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))
}
