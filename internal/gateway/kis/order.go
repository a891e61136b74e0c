package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hansu/internal/logger"
	"hansu/internal/types"
)

// OrderAck 是下单接口的业务回执。OrderID（ODNO）此后用于与
// 推送通道的成交回报去重。
type OrderAck struct {
	OrderID string
	Message string
}

// PlaceOrder 提交一笔现金限价单（order-cash）。
// 业务拒绝返回 *APIError（msg 原样保留），传输失败返回 ErrNoResponse。
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side types.Side, quantity int64, price float64) (OrderAck, error) {
	if !side.Valid() {
		return OrderAck{}, fmt.Errorf("kis: 非法订单方向 %q", side)
	}
	if quantity <= 0 {
		return OrderAck{}, fmt.Errorf("kis: 订单数量必须为正")
	}

	var trID string
	if side == types.SideBuy {
		trID = c.trID("VTTC0802U", "TTTC0802U")
	} else {
		trID = c.trID("VTTC0801U", "TTTC0801U")
	}

	body := map[string]string{
		"CANO":         c.cano,
		"ACNT_PRDT_CD": c.prdtCode,
		"PDNO":         symbol,
		"ORD_DVSN":     "00", // 指定价
		"ORD_QTY":      strconv.FormatInt(quantity, 10),
		"ORD_UNPR":     strconv.FormatInt(int64(price), 10),
	}

	// hashkey 是报文完整性签名；签发失败降级为仅凭 token 提交。
	var extra map[string]string
	if raw, merr := json.Marshal(body); merr == nil {
		if hash, herr := c.hashkey(ctx, raw); herr != nil {
			logger.Warnf("[kis:%s] hashkey 签发失败: %v", c.account.ID, herr)
		} else {
			extra = map[string]string{"hashkey": hash}
		}
	}

	env, err := c.doRequest(ctx, http.MethodPost,
		"/uapi/domestic-stock/v1/trading/order-cash", trID, nil, body, extra)
	if err != nil {
		return OrderAck{}, err
	}
	if err := env.Err(); err != nil {
		return OrderAck{}, err
	}
	orderID := strings.TrimSpace(env.Output().Get("ODNO").String())
	if orderID == "" {
		return OrderAck{}, &APIError{Code: env.MsgCd, Message: "응답에 주문번호(ODNO)가 없습니다"}
	}
	return OrderAck{OrderID: orderID, Message: env.Msg1}, nil
}
