package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ApprovalKey 为推送通道签发实时接入密钥（/oauth2/Approval）。
// 推送连接每次建立都需要一把新的或仍然有效的 approval key。
func (c *Client) ApprovalKey(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.account.AppKey,
		"secretkey":  c.account.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("序列化 approval 请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/Approval", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("构造 approval 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	var out struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.ApprovalKey == "" {
		return "", fmt.Errorf("kis: approval key 签发失败: status=%s body=%s", resp.Status, truncate(string(data), 200))
	}
	return out.ApprovalKey, nil
}
