// Package publish delivers finished articles to the WeChat Official
// Account platform as drafts or published posts.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

const defaultBaseURL = "https://api.weixin.qq.com"

// digestRunes is the platform limit on the article digest.
const digestRunes = 120

// Config identifies the Official Account.
type Config struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	BaseURL   string `yaml:"base_url"`
	Author    string `yaml:"author"`
}

// Enabled reports whether publish credentials are configured.
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// WeChatPublisher implements pipeline.Publisher against the WeChat
// draft and freepublish APIs.
type WeChatPublisher struct {
	cfg    Config
	http   *http.Client
	tokens *tokenSource
	logger *slog.Logger
}

// NewWeChatPublisher creates a publisher for the configured account.
func NewWeChatPublisher(cfg Config, logger *slog.Logger) *WeChatPublisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := &http.Client{}
	return &WeChatPublisher{
		cfg:    cfg,
		http:   client,
		tokens: newTokenSource(client, cfg.BaseURL, cfg.AppID, cfg.AppSecret),
		logger: logger,
	}
}

type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author,omitempty"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type draftAddRequest struct {
	Articles []draftArticle `json:"articles"`
}

type draftAddResponse struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type submitRequest struct {
	MediaID string `json:"media_id"`
}

type submitResponse struct {
	PublishID string `json:"publish_id"`
	ErrCode   int    `json:"errcode"`
	ErrMsg    string `json:"errmsg"`
}

// Publish creates a draft and, unless the request is draft-only,
// submits it for publication. A failed submit fails the stage; a
// dangling draft is left behind rather than reported as success.
func (p *WeChatPublisher) Publish(ctx context.Context, req pipeline.PublishRequest) (*domain.PublishReceipt, error) {
	if !p.cfg.Enabled() {
		return nil, pipeline.Permanentf("wechat credentials not configured")
	}

	author := req.Author
	if author == "" {
		author = p.cfg.Author
	}
	draft := draftArticle{
		Title:   req.Article.Title,
		Author:  author,
		Digest:  truncateRunes(req.Article.Summary, digestRunes),
		Content: RenderHTML(req.Article.Content),
	}

	var draftResp draftAddResponse
	if err := p.call(ctx, "/cgi-bin/draft/add", draftAddRequest{Articles: []draftArticle{draft}}, &draftResp); err != nil {
		return nil, err
	}
	if draftResp.ErrCode != 0 {
		return nil, p.handleAPIError(draftResp.ErrCode, draftResp.ErrMsg)
	}
	if draftResp.MediaID == "" {
		return nil, pipeline.Transientf("draft created without media id")
	}

	receipt := &domain.PublishReceipt{
		Platform:    "wechat",
		DraftID:     draftResp.MediaID,
		DraftOnly:   req.DraftOnly,
		PublishedAt: time.Now(),
	}
	p.logger.InfoContext(ctx, "draft created",
		slog.String("media_id", draftResp.MediaID),
		slog.Bool("draft_only", req.DraftOnly))

	if req.DraftOnly {
		return receipt, nil
	}

	var pubResp submitResponse
	if err := p.call(ctx, "/cgi-bin/freepublish/submit", submitRequest{MediaID: draftResp.MediaID}, &pubResp); err != nil {
		return nil, err
	}
	if pubResp.ErrCode != 0 {
		return nil, p.handleAPIError(pubResp.ErrCode, pubResp.ErrMsg)
	}
	receipt.ArticleID = pubResp.PublishID
	receipt.PublishedAt = time.Now()
	p.logger.InfoContext(ctx, "article submitted for publication",
		slog.String("publish_id", pubResp.PublishID))
	return receipt, nil
}

// call posts a JSON body to a token-authenticated endpoint.
func (p *WeChatPublisher) call(ctx context.Context, path string, in, out any) error {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return pipeline.Permanentf("encode %s request: %w", path, err)
	}
	endpoint := fmt.Sprintf("%s%s?access_token=%s", p.cfg.BaseURL, path, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pipeline.Permanentf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return pipeline.Transientf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pipeline.Transientf("read %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return pipeline.Transientf("%s returned HTTP %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return pipeline.Transientf("decode %s response: %w", path, err)
	}
	return nil
}

// handleAPIError maps a WeChat errcode to the failure taxonomy,
// dropping the cached token when the platform reports it expired.
func (p *WeChatPublisher) handleAPIError(code int, msg string) error {
	if code == 42001 {
		p.tokens.Invalidate()
	}
	return classifyErrCode(code, msg)
}

// classifyErrCode maps WeChat errcodes onto the failure taxonomy.
// Busy signals and rate limits retry; credential and permission
// errors do not.
func classifyErrCode(code int, msg string) error {
	switch code {
	case -1, 45009, 42001:
		return pipeline.Transientf("wechat api busy (errcode %d): %s", code, msg)
	case 40001, 40164, 48001, 40013, 41002:
		return pipeline.Permanentf("wechat api rejected request (errcode %d): %s", code, msg)
	default:
		return pipeline.Permanentf("wechat api error (errcode %d): %s", code, msg)
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
