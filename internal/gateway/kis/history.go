package kis

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"

	"hansu/internal/pkg/convert"
	"hansu/internal/types"
)

// DailyCandles 查询个股日线（inquire-daily-itemchartprice），按日期升序返回。
func (c *Client) DailyCandles(ctx context.Context, symbol string, days int) ([]types.Candle, error) {
	return c.dailyChart(ctx, "J", symbol, days)
}

// IndexDailyCandles 查询指数日线（KOSPI=0001），供市场模式判定使用。
func (c *Client) IndexDailyCandles(ctx context.Context, code string, days int) ([]types.Candle, error) {
	return c.dailyChart(ctx, "U", code, days)
}

func (c *Client) dailyChart(ctx context.Context, marketCode, symbol string, days int) ([]types.Candle, error) {
	if days <= 0 {
		days = 100
	}
	now := time.Now()
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", marketCode)
	params.Set("FID_INPUT_ISCD", symbol)
	params.Set("FID_INPUT_DATE_1", now.AddDate(0, 0, -days).Format("20060102"))
	params.Set("FID_INPUT_DATE_2", now.Format("20060102"))
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "1")

	env, err := c.doRequest(ctx, http.MethodGet,
		"/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice",
		"FHKST03010100", params, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}

	rows := env.Output2().Array()
	out := make([]types.Candle, 0, len(rows))
	for _, row := range rows {
		dateStr := row.Get("stck_bsop_date").String()
		date, perr := time.Parse("20060102", dateStr)
		if perr != nil {
			continue
		}
		close := convert.ToFloat64(row.Get("stck_clpr").String())
		if close <= 0 {
			continue
		}
		out = append(out, types.Candle{
			Date:   date,
			Open:   convert.ToFloat64(row.Get("stck_oprc").String()),
			High:   convert.ToFloat64(row.Get("stck_hgpr").String()),
			Low:    convert.ToFloat64(row.Get("stck_lwpr").String()),
			Close:  close,
			Volume: convert.ToFloat64(row.Get("acml_vol").String()),
		})
	}
	// KIS 返回按日期倒序，统一转为升序方便指标计算。
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
