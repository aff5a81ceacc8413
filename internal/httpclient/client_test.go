package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func TestGetJSONQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "10", r.URL.Query().Get("start"))
		json.NewEncoder(w).Encode(payload{Value: "ok"})
	}))
	defer server.Close()

	var out payload
	err := New().GetJSON(context.Background(), server.URL+"/x", url.Values{"start": {"10"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(payload{Value: in.Value + "!"})
	}))
	defer server.Close()

	var out payload
	require.NoError(t, New().PostJSON(context.Background(), server.URL, payload{Value: "hi"}, &out))
	assert.Equal(t, "hi!", out.Value)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(payload{Value: "late"})
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	var out payload
	require.NoError(t, client.GetJSON(context.Background(), server.URL, nil, &out))
	assert.Equal(t, "late", out.Value)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such pool", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	err := client.GetJSON(context.Background(), server.URL, nil, &payload{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, "no such pool", statusErr.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(WithMaxRetries(2), WithRetryBackoff(time.Millisecond))
	err := client.GetJSON(context.Background(), server.URL, nil, &payload{})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecodeErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := New(WithMaxRetries(3), WithRetryBackoff(time.Millisecond))
	err := client.GetJSON(context.Background(), server.URL, nil, &payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)
}
