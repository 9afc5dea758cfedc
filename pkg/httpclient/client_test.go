package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBrowserClientPresentsAsBrowser(t *testing.T) {
	var gotUA, gotEncoding, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotEncoding = r.Header.Get("Accept-Encoding")
		gotCustom = r.Header.Get("Accept-Language")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(BrowserClient)
	body, err := client.Fetch(context.Background(), http.MethodGet, server.URL, nil, map[string]string{"Accept-Language": "de"}, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))

	require.NotEmpty(t, gotUA)
	require.NotContains(t, gotUA, "Go-http-client")
	require.NotContains(t, gotEncoding, "br")
	require.Equal(t, "de", gotCustom, "caller headers must win over profile defaults")
}

func TestFetchReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client := NewClient(APIClient)
	_, err := client.Fetch(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, "slow down", statusErr.Body)
}

func TestGetJSONEncodesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "lo-fi", r.URL.Query().Get("q"))
		require.Equal(t, "1", r.URL.Query().Get("fixed"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"episode"}`))
	}))
	defer server.Close()

	var out struct {
		Name string `json:"name"`
	}
	client := NewClient(APIClient)
	err := client.GetJSON(context.Background(), server.URL+"?fixed=1", url.Values{"q": {"lo-fi"}}, nil, &out)
	require.NoError(t, err)
	require.Equal(t, "episode", out.Name)
}

func TestPostJSONSendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`[{"ok":true}]`))
	}))
	defer server.Close()

	var out []struct {
		OK bool `json:"ok"`
	}
	client := NewClient(APIClient)
	require.NoError(t, client.PostJSON(context.Background(), server.URL, map[string]string{"a": "b"}, nil, &out))
	require.Len(t, out, 1)
	require.True(t, out[0].OK)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(APIClient, WithRateLimit(0.001, 1))
	_, err := client.Fetch(context.Background(), http.MethodGet, server.URL, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Fetch(ctx, http.MethodGet, server.URL, nil, nil, nil)
	require.Error(t, err)
}
