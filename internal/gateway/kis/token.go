package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hansu/internal/logger"
)

// refreshMargin：令牌在过期前 5 分钟即视为失效，主动换新而不是等 401。
const refreshMargin = 5 * time.Minute

// tokenHolder 持有一条凭证对应的访问令牌。每个 Client（即每个账户）
// 独享一个实例，没有进程级共享状态。
type tokenHolder struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
	nowFn func() time.Time
}

func newTokenHolder() *tokenHolder {
	return &tokenHolder{nowFn: time.Now}
}

func (h *tokenHolder) cached() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == "" {
		return "", false
	}
	if h.nowFn().After(h.expiresAt.Add(-refreshMargin)) {
		return "", false
	}
	return h.token, true
}

func (h *tokenHolder) store(token string, expiresIn time.Duration) {
	h.mu.Lock()
	h.token = token
	h.expiresAt = h.nowFn().Add(expiresIn)
	h.mu.Unlock()
}

// Token 返回可用令牌，必要时签发新令牌。并发调用共享同一次签发。
func (c *Client) Token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.cached(); ok {
		return tok, nil
	}
	v, err, _ := c.tokens.group.Do("issue", func() (any, error) {
		// double check：等锁期间可能已有别的调用完成签发
		if tok, ok := c.tokens.cached(); ok {
			return tok, nil
		}
		return c.issueToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) issueToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.account.AppKey,
		"appsecret":  c.account.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("序列化令牌请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("构造令牌请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status=%s body=%s", ErrTokenUnavailable, resp.Status, truncate(string(data), 200))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: 解析响应失败: %v", ErrTokenUnavailable, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: 响应缺少 access_token", ErrTokenUnavailable)
	}
	expires := time.Duration(out.ExpiresIn) * time.Second
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	token := "Bearer " + out.AccessToken
	c.tokens.store(token, expires)
	logger.Infof("[kis:%s] 新令牌已签发（有效期约 %s）", c.account.ID, expires.Truncate(time.Minute))
	return token, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
