package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hansu/internal/types"
)

func violationCodes(a Assessment) []string {
	out := make([]string, 0, len(a.Violations))
	for _, v := range a.Violations {
		out = append(out, v.Code)
	}
	return out
}

func TestRiskGateInvalidIntent(t *testing.T) {
	gate := NewRiskGate(newMemStore(), testRiskConfig())
	broker := &fakeBroker{id: "acc1"}

	for _, intent := range []types.Intent{
		{AccountID: "acc1", Symbol: "005930", Side: "HOLD", Quantity: 1, Price: 100},
		{AccountID: "acc1", Symbol: "005930", Side: types.SideBuy, Quantity: 0, Price: 100},
		{AccountID: "acc1", Symbol: "005930", Side: types.SideBuy, Quantity: 1, Price: 0},
		{AccountID: "acc1", Symbol: "", Side: types.SideBuy, Quantity: 1, Price: 100},
	} {
		a := gate.Assess(context.Background(), broker, intent, "")
		assert.False(t, a.OK)
		assert.Contains(t, violationCodes(a), ViolationInvalidIntent)
	}
	// 无效委托在触达余额接口之前就被拒绝。
	assert.Equal(t, 0, broker.balanceCalls)
}

func TestRiskGateBuyCashCheckIncludesFee(t *testing.T) {
	gate := NewRiskGate(newMemStore(), testRiskConfig())
	intent := types.Intent{
		AccountID: "acc1", Symbol: "005930",
		Side: types.SideBuy, Quantity: 10, Price: 100000,
	}
	// 名义金额 1,000,000，含手续费 1,000,150。
	broker := &fakeBroker{id: "acc1", balance: types.BalanceSummary{OrderableCash: 1_000_000}}
	a := gate.Assess(context.Background(), broker, intent, "")
	assert.False(t, a.OK)
	assert.Contains(t, violationCodes(a), ViolationInsufficientCash)

	broker.balance.OrderableCash = 1_000_150
	a = gate.Assess(context.Background(), broker, intent, "")
	assert.True(t, a.OK)
}

func TestRiskGateSellHoldingsCheck(t *testing.T) {
	gate := NewRiskGate(newMemStore(), testRiskConfig())
	intent := types.Intent{
		AccountID: "acc1", Symbol: "005930",
		Side: types.SideSell, Quantity: 10, Price: 100000,
	}
	broker := &fakeBroker{id: "acc1", balance: types.BalanceSummary{
		Holdings: []types.Holding{{Symbol: "005930", Quantity: 5}},
	}}
	a := gate.Assess(context.Background(), broker, intent, "")
	assert.False(t, a.OK)
	assert.Contains(t, violationCodes(a), ViolationInsufficientHoldings)

	broker.balance.Holdings[0].Quantity = 10
	a = gate.Assess(context.Background(), broker, intent, "")
	assert.True(t, a.OK)
}

func TestRiskGateFailsClosedOnBalanceError(t *testing.T) {
	gate := NewRiskGate(newMemStore(), testRiskConfig())
	broker := &fakeBroker{id: "acc1", balanceErr: errors.New("timeout")}
	a := gate.Assess(context.Background(), broker, types.Intent{
		AccountID: "acc1", Symbol: "005930",
		Side: types.SideBuy, Quantity: 1, Price: 100,
	}, "")
	assert.False(t, a.OK)
	assert.Contains(t, violationCodes(a), ViolationBalanceUnavailable)
}

func TestRiskGateDuplicatePending(t *testing.T) {
	st := newMemStore()
	svc := newTestOrderService(st)
	broker := &fakeBroker{id: "acc1", balance: richBalance()}
	broker.ack.OrderID = "0000000042"
	_, err := svc.Submit(context.Background(), broker, buyIntent())
	require.NoError(t, err)

	gate := NewRiskGate(st, testRiskConfig())
	a := gate.Assess(context.Background(), broker, buyIntent(), "")
	assert.False(t, a.OK)
	assert.Contains(t, violationCodes(a), ViolationDuplicateOrder)

	// 排除自己的订单行后不算重复。
	pending, err := st.Orders().FindPending(context.Background(), "acc1", "005930", "BUY")
	require.NoError(t, err)
	require.NotNil(t, pending)
	a = gate.Assess(context.Background(), broker, buyIntent(), pending.ID)
	assert.True(t, a.OK)

	// 反方向不受影响。
	sell := buyIntent()
	sell.Side = types.SideSell
	broker.balance.Holdings = []types.Holding{{Symbol: "005930", Quantity: 100}}
	a = gate.Assess(context.Background(), broker, sell, "")
	assert.True(t, a.OK)
}
