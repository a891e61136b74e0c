package kis

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hansu/internal/pkg/convert"
	"hansu/internal/types"
)

// Balance 查询账户余额与持仓明细（inquire-balance）。
// output1 为持仓行，output2 为账户汇总行。
func (c *Client) Balance(ctx context.Context) (types.BalanceSummary, error) {
	params := url.Values{}
	params.Set("CANO", c.cano)
	params.Set("ACNT_PRDT_CD", c.prdtCode)
	params.Set("AFHR_FLPR_YN", "N")
	params.Set("OFL_YN", "")
	params.Set("INQR_DVSN", "01")
	params.Set("UNPR_DVSN", "01")
	params.Set("FUND_STTL_ICLD_YN", "N")
	params.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	params.Set("PRCS_DVSN", "00")
	params.Set("CTX_AREA_FK100", "")
	params.Set("CTX_AREA_NK100", "")

	env, err := c.doRequest(ctx, http.MethodGet,
		"/uapi/domestic-stock/v1/trading/inquire-balance",
		c.trID("VTTC8434R", "TTTC8434R"), params, nil, nil)
	if err != nil {
		return types.BalanceSummary{}, err
	}
	if err := env.Err(); err != nil {
		return types.BalanceSummary{}, err
	}

	summary := types.BalanceSummary{FetchedAt: time.Now()}
	for _, row := range env.Output1().Array() {
		qty := convert.ToInt64(row.Get("hldg_qty").String())
		if qty <= 0 {
			continue
		}
		summary.Holdings = append(summary.Holdings, types.Holding{
			Symbol:         strings.TrimSpace(row.Get("pdno").String()),
			Name:           strings.TrimSpace(row.Get("prdt_name").String()),
			Quantity:       qty,
			AvgBuyPrice:    convert.ToFloat64(row.Get("pchs_avg_pric").String()),
			PurchaseAmount: convert.ToFloat64(row.Get("pchs_amt").String()),
			CurrentPrice:   convert.ToFloat64(row.Get("prpr").String()),
		})
	}
	if rows := env.Output2().Array(); len(rows) > 0 {
		first := rows[0]
		summary.TotalAssets = convert.ToFloat64(first.Get("tot_evlu_amt").String())
		summary.OrderableCash = convert.ToFloat64(first.Get("ord_psbl_cash").String())
		if summary.OrderableCash == 0 {
			summary.OrderableCash = convert.ToFloat64(first.Get("dnca_tot_amt").String())
		}
	}
	return summary, nil
}
