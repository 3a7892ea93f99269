package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"recycling-bins/internal/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return New(Options{
		Timeout:      2 * time.Second,
		RetryCount:   3,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
}

func TestGetJSON_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"ok"}`))
		}
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := testClient().GetJSON(context.Background(), "test", srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), "test", srv.URL, nil, &out)
	require.Error(t, err)
	assert.Equal(t, apperr.KindFetch, apperr.KindOf(err))
	assert.False(t, apperr.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSON_RateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), "test", srv.URL, nil, &out)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimit, apperr.KindOf(err))
}

func TestPostJSON_SendsBodyAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.JSONEq(t, `{"category":"מתקני מיחזור"}`, string(body))
		_, _ = w.Write([]byte(`{"d":[1,2]}`))
	}))
	defer srv.Close()

	var out struct {
		D []int `json:"d"`
	}
	err := testClient().PostJSON(context.Background(), "test", srv.URL, map[string]string{"category": "מתקני מיחזור"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.D)
}

func TestPostJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().PostJSON(context.Background(), "test", srv.URL, map[string]int{}, &out)
	require.Error(t, err)
	assert.Equal(t, apperr.KindParse, apperr.KindOf(err))
}

func TestGetHTML_DecodesLegacyCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1255")
		_, _ = w.Write([]byte("<html><body><td>"))
		// "שלום" in windows-1255
		_, _ = w.Write([]byte{0xF9, 0xEC, 0xE5, 0xEE})
		_, _ = w.Write([]byte("</td></body></html>"))
	}))
	defer srv.Close()

	doc, err := testClient().GetHTML(context.Background(), "test", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "שלום", doc.Find("td").Text())
}

func TestClient_RateLimitSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Options{Interval: 50 * time.Millisecond})
	var out map[string]any
	start := time.Now()
	for range 3 {
		require.NoError(t, c.GetJSON(context.Background(), "test", srv.URL, nil, &out))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out map[string]any
	err := testClient().GetJSON(ctx, "test", srv.URL, nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetJSON_RetriesTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := New(Options{
		Timeout:      100 * time.Millisecond,
		RetryCount:   3,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
	var out struct {
		Name string `json:"name"`
	}
	err := c.GetJSON(context.Background(), "test", srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_RetriesDroppedConnection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), "test", srv.URL, nil, &out)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRestyLogger_WritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	l := restyLogger{log: zerolog.New(&buf)}

	l.Warnf("retrying %s, attempt %d", "GET", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "retrying GET, attempt 2", entry["message"])
}
