package kis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// hashkey 为资金变动类 POST 报文签发完整性摘要（HASH 头）。
// 不需要访问令牌，只凭 appkey/appsecret。
func (c *Client) hashkey(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uapi/hashkey", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("appkey", c.account.AppKey)
	req.Header.Set("appsecret", c.account.AppSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	hash := gjson.GetBytes(data, "HASH").String()
	if hash == "" {
		return "", fmt.Errorf("hashkey 응답에 HASH가 없습니다: %s", truncate(string(data), 120))
	}
	return hash, nil
}
