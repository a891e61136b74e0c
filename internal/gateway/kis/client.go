// Package kis wraps the Korea Investment & Securities OpenAPI: token
// management, signed request/response calls and the websocket approval key.
// It carries no strategy or risk knowledge.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hansu/internal/config"
	"hansu/internal/logger"
	"hansu/internal/pkg/circuit"
)

// Client 是单个账户的 KIS REST 客户端。令牌按凭证缓存在实例内部。
type Client struct {
	account    config.AccountEntry
	baseURL    string
	httpClient *http.Client
	tokens     *tokenHolder
	breaker    *circuit.Breaker

	retryAttempts int
	retryDelay    time.Duration
	sleepFn       func(time.Duration)

	cano     string // 계좌번호 앞 8 자리
	prdtCode string // 상품코드 뒤 2 자리
}

// NewClient constructs a per-account client. 模拟账户与实盘账户使用不同的
// 域名与 TR_ID，由 account.Kind 决定。
func NewClient(account config.AccountEntry, cfg config.KISConfig) (*Client, error) {
	base := cfg.SimBaseURL
	if !account.Simulated() {
		base = cfg.RealBaseURL
	}
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("kis base url 不能为空")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("解析 kis base url 失败: %w", err)
	}

	clean := strings.ReplaceAll(account.Number, "-", "")
	if len(clean) < 10 {
		return nil, fmt.Errorf("账户号码格式错误: %s", account.Number)
	}

	return &Client{
		account:       account,
		baseURL:       base,
		httpClient:    &http.Client{Timeout: cfg.Timeout()},
		tokens:        newTokenHolder(),
		breaker:       circuit.NewBreaker("kis:"+account.ID, cfg.BreakerThreshold, time.Duration(cfg.BreakerCooldownS)*time.Second),
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay(),
		sleepFn:       time.Sleep,
		cano:          clean[:8],
		prdtCode:      clean[8:10],
	}, nil
}

// AccountID returns the configured account id.
func (c *Client) AccountID() string { return c.account.ID }

// Simulated reports whether this client talks to the paper-trading host.
func (c *Client) Simulated() bool { return c.account.Simulated() }

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) { c.httpClient = client }

// SetBaseURL overrides the endpoint for testing.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimSuffix(u, "/") }

// trID picks the simulated or real transaction id.
func (c *Client) trID(sim, real string) string {
	if c.account.Simulated() {
		return sim
	}
	return real
}

// doRequest 发出一次签名请求并返回统一信封。
// 传输失败（无响应）按固定间隔重试，重试用尽后返回 ErrNoResponse；
// 收到响应即视为传输成功，业务结果由信封携带，调用方自行判定。
func (c *Client) doRequest(ctx context.Context, method, path, trID string, params url.Values, payload any, extra map[string]string) (Envelope, error) {
	if !c.breaker.Allow() {
		return Envelope{}, fmt.Errorf("%w: circuit open", ErrNoResponse)
	}
	token, err := c.Token(ctx)
	if err != nil {
		c.breaker.RecordFailure()
		return Envelope{}, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("序列化请求失败: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	attempts := c.retryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return Envelope{}, ctx.Err()
		}
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return Envelope{}, fmt.Errorf("构造请求失败: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("authorization", token)
		req.Header.Set("appkey", c.account.AppKey)
		req.Header.Set("appsecret", c.account.AppSecret)
		if trID != "" {
			req.Header.Set("tr_id", trID)
		}
		for k, v := range extra {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			logger.Warnf("[kis:%s] 请求 %s 失败（第 %d/%d 次）: %v", c.account.ID, path, attempt, attempts, err)
			if attempt < attempts {
				c.sleepFn(c.retryDelay)
			}
			continue
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			logger.Warnf("[kis:%s] 读取 %s 响应失败（第 %d/%d 次）: %v", c.account.ID, path, attempt, attempts, readErr)
			if attempt < attempts {
				c.sleepFn(c.retryDelay)
			}
			continue
		}
		c.breaker.RecordSuccess()
		env := parseEnvelope(data)
		if env.RtCd == "" && resp.StatusCode >= 300 {
			// 没有标准信封的网关错误（例如 500 HTML 页面）
			return Envelope{}, fmt.Errorf("%w: status=%s body=%s", ErrNoResponse, resp.Status, truncate(string(data), 200))
		}
		return env, nil
	}
	c.breaker.RecordFailure()
	return Envelope{}, fmt.Errorf("%w: %v", ErrNoResponse, lastErr)
}
