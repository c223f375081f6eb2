package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/pipeline"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		BaseURL:           url,
		APIKey:            "test-key",
		Model:             "test-model",
		RequestsPerMinute: 6000,
	}, nil)
}

func completionBody(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + jsonString(text) + `}}]}`
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		case '\n':
			out += `\n`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func TestComplete_Success(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("hello")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	reply, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
}

func TestComplete_ThrottledIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestComplete_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestComplete_AuthErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.False(t, pipeline.IsTransient(err))
}

func TestComplete_APIErrorFieldIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.False(t, pipeline.IsTransient(err))
	assert.Contains(t, err.Error(), "context length exceeded")
}

func TestComplete_EmptyChoicesIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestComplete_UnreachableEndpointIsTransient(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err))
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"Here you go:\n```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{`prose {"a":{"b":2}} trailing`, `{"a":{"b":2}}`, true},
		{`no json here`, ``, false},
		{`}{`, ``, false},
	}
	for _, tt := range tests {
		got, ok := extractJSONObject(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
