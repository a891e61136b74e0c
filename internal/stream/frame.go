package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"hansu/internal/pkg/convert"
	"hansu/internal/types"
)

// 实时体结通报帧：'0'/'1' 前缀，'|' 分隔四段，第四段再按 '^' 拆字段。
const (
	trIDExecReal = "H0STCNI0"
	trIDExecSim  = "H0STCNI9"
	trIDPrice    = "H0STCNT0"

	fieldOrderID  = 1
	fieldTicker   = 3
	fieldQty      = 7
	fieldPrice    = 8
	fieldSideCode = 10
	fieldExecFlag = 14
	minExecFields = 15

	// 实时体结가 帧：0=종목코드 1=체결시간 2=현재가。
	fieldTickSymbol = 0
	fieldTickPrice  = 2
	minTickFields   = 3
)

// frameKind classifies one raw websocket message.
type frameKind int

const (
	frameUnknown frameKind = iota
	frameExec
	framePingPong
	frameControl
)

func classify(raw []byte) frameKind {
	if len(raw) == 0 {
		return frameUnknown
	}
	switch raw[0] {
	case '0', '1':
		return frameExec
	case '{':
		if gjson.GetBytes(raw, "header.tr_id").String() == "PINGPONG" {
			return framePingPong
		}
		return frameControl
	default:
		return frameUnknown
	}
}

// dataTrID peeks the tr_id of a '0'/'1' data frame so the supervisor
// can demux before full parsing.
func dataTrID(raw []byte) string {
	parts := strings.SplitN(string(raw), "|", 4)
	if len(parts) < 4 {
		return ""
	}
	return parts[1]
}

// parsePriceFrame extracts (symbol, price) from a realtime quote frame.
func parsePriceFrame(raw []byte) (string, float64, error) {
	parts := strings.Split(string(raw), "|")
	if len(parts) < 4 {
		return "", 0, fmt.Errorf("帧段数不足: %d", len(parts))
	}
	fields := strings.Split(parts[3], "^")
	if len(fields) < minTickFields {
		return "", 0, fmt.Errorf("行情字段不足: %d", len(fields))
	}
	symbol := strings.TrimSpace(fields[fieldTickSymbol])
	price := convert.ToFloat64(fields[fieldTickPrice])
	if symbol == "" || price <= 0 {
		return "", 0, fmt.Errorf("行情字段非法 symbol=%q price=%.2f", symbol, price)
	}
	return symbol, price, nil
}

// parseExecFrame extracts a fill from an execution report frame.
// Acceptance/rejection notices (exec flag != '2') return ok=false with
// no error; malformed frames return an error so the caller can log and
// skip them without tearing the connection down.
func parseExecFrame(accountID string, raw []byte) (types.Fill, bool, error) {
	parts := strings.Split(string(raw), "|")
	if len(parts) < 4 {
		return types.Fill{}, false, fmt.Errorf("帧段数不足: %d", len(parts))
	}
	trID := parts[1]
	if trID != trIDExecReal && trID != trIDExecSim {
		return types.Fill{}, false, nil
	}
	fields := strings.Split(parts[3], "^")
	if len(fields) < minExecFields {
		return types.Fill{}, false, fmt.Errorf("体结字段不足: %d", len(fields))
	}
	if fields[fieldExecFlag] != "2" {
		// 1: 접수/거부 통보，不产生成交。
		return types.Fill{}, false, nil
	}

	qty := convert.ToInt64(fields[fieldQty])
	price := convert.ToFloat64(fields[fieldPrice])
	orderID := strings.TrimSpace(fields[fieldOrderID])
	symbol := strings.TrimSpace(fields[fieldTicker])
	if qty <= 0 || price <= 0 || orderID == "" || symbol == "" {
		return types.Fill{}, false, fmt.Errorf("体结字段非法 order_id=%q symbol=%q qty=%d price=%.2f",
			orderID, symbol, qty, price)
	}

	side := types.SideSell
	if fields[fieldSideCode] == "02" {
		side = types.SideBuy
	}
	return types.Fill{
		AccountID:     accountID,
		BrokerOrderID: orderID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		Price:         price,
		At:            time.Now(),
	}, true, nil
}
