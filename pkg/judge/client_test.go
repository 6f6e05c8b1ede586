package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestClientExecuteReturnsResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submissions", r.URL.Path)

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "python", req.Language)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Result{Stdout: "42\n", StatusID: StatusAccepted, RuntimeSec: 0.02, MemoryKB: 3200})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	result, err := client.Execute(context.Background(), Request{Code: "print(42)", Language: "python", Stdin: ""})
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.StatusID)
	require.Equal(t, "42\n", result.Stdout)
}

func TestClientExecuteServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), Request{Code: "x", Language: "python"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestClientExecuteTimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), Request{Code: "x", Language: "python"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestClientExecuteJudgeInternalErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{StatusID: StatusInternalError})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Timeout: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), Request{Code: "x", Language: "go"})
	require.True(t, errors.Is(err, ErrUnavailable))
}
