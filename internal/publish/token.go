package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"contentpipe/internal/pipeline"
)

// tokenSource caches the WeChat access token and refreshes it at
// most once at a time regardless of how many publishes race for it.
type tokenSource struct {
	client    *http.Client
	baseURL   string
	appID     string
	appSecret string

	mu      sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

func newTokenSource(client *http.Client, baseURL, appID, appSecret string) *tokenSource {
	return &tokenSource{
		client:    client,
		baseURL:   baseURL,
		appID:     appID,
		appSecret: appSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// Token returns a valid access token, fetching a fresh one when the
// cached token is within a minute of expiry.
func (s *tokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.token != "" && time.Until(s.expires) > time.Minute {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("token", func() (any, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token after the API reports it expired.
func (s *tokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expires = time.Time{}
	s.mu.Unlock()
}

func (s *tokenSource) fetch(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		s.baseURL, url.QueryEscape(s.appID), url.QueryEscape(s.appSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", pipeline.Permanentf("build token request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", pipeline.Transientf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pipeline.Transientf("read token response: %w", err)
	}
	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", pipeline.Transientf("decode token response: %w", err)
	}
	if parsed.ErrCode != 0 {
		return "", classifyErrCode(parsed.ErrCode, parsed.ErrMsg)
	}
	if parsed.AccessToken == "" {
		return "", pipeline.Transientf("token response carried no token")
	}

	s.mu.Lock()
	s.token = parsed.AccessToken
	s.expires = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	s.mu.Unlock()
	return parsed.AccessToken, nil
}
