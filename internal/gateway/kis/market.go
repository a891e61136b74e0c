package kis

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"hansu/internal/logger"
)

var seoulTZ = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*3600)
	}
	return loc
}()

// nominalTradingHours：周一至周五 09:00–15:30 KST。
func nominalTradingHours(now time.Time) bool {
	kst := now.In(seoulTZ)
	switch kst.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	open := time.Date(kst.Year(), kst.Month(), kst.Day(), 9, 0, 0, 0, seoulTZ)
	close := time.Date(kst.Year(), kst.Month(), kst.Day(), 15, 30, 0, 0, seoulTZ)
	return !kst.Before(open) && !kst.After(close)
}

// MarketOpen 探测市场是否开盘。
// 活查询可用时以 bsop_yn 为准；查询失败或含糊时退回名义交易时段判断，
// 但绝不在名义时段之外把“明确收盘”翻转为开盘。
func (c *Client) MarketOpen(ctx context.Context) bool {
	return c.marketOpenAt(ctx, time.Now())
}

func (c *Client) marketOpenAt(ctx context.Context, now time.Time) bool {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", "0001")

	env, err := c.doRequest(ctx, http.MethodGet,
		"/uapi/domestic-stock/v1/quotations/inquire-price",
		"FHKST01010100", params, nil, nil)
	if err == nil && env.OK() {
		switch env.Output().Get("bsop_yn").String() {
		case "Y":
			return true
		case "N":
			// 명확한 휴장 신호는 그대로 따른다（但模拟环境在名义时段内继续）。
			if c.account.Simulated() && nominalTradingHours(now) {
				logger.Warnf("[kis:%s] 探测接口回报收盘，但处于名义交易时段，模拟环境按开盘处理", c.account.ID)
				return true
			}
			return false
		}
	}
	// 无响应或字段缺失：按名义交易时段兜底。
	if err != nil {
		logger.Warnf("[kis:%s] 开盘探测失败，按名义交易时段兜底: %v", c.account.ID, err)
	}
	return nominalTradingHours(now)
}
