package kis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hansu/internal/pkg/convert"
	"hansu/internal/types"
)

// Quote 查询单只股票的现价（inquire-price）。
func (c *Client) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", symbol)

	env, err := c.doRequest(ctx, http.MethodGet,
		"/uapi/domestic-stock/v1/quotations/inquire-price",
		"FHKST01010100", params, nil, nil)
	if err != nil {
		return types.Quote{}, err
	}
	if err := env.Err(); err != nil {
		return types.Quote{}, err
	}
	price := convert.ToFloat64(env.Output().Get("stck_prpr").String())
	if price <= 0 {
		return types.Quote{}, fmt.Errorf("kis: %s 现价无效", symbol)
	}
	return types.Quote{Symbol: symbol, Price: price, At: time.Now()}, nil
}
