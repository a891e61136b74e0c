package kis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hansu/internal/config"
	"hansu/internal/types"
)

func testAccount() config.AccountEntry {
	return config.AccountEntry{
		ID: "acc1", Name: "테스트", Number: "12345678-01",
		AppKey: "key", AppSecret: "secret", Kind: "SIM", Active: true,
	}
}

func testKISConfig() config.KISConfig {
	return config.KISConfig{
		SimBaseURL:    "https://sim.example",
		RetryAttempts: 3, RetryDelayMS: 1,
		BreakerThreshold: 100, BreakerCooldownS: 1,
	}
}

type route func(w http.ResponseWriter, r *http.Request)

// newTestClient 启一个假 KIS 网关并把客户端指过去。
// tokenP/hashkey 默认放行，其余路径交给 handler。
func newTestClient(t *testing.T, handler route) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-123", "expires_in": 86400,
			})
		case "/uapi/hashkey":
			_ = json.NewEncoder(w).Encode(map[string]any{"HASH": "hash-abc"})
		default:
			handler(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(testAccount(), testKISConfig())
	require.NoError(t, err)
	c.SetBaseURL(srv.URL)
	c.SetHTTPClient(srv.Client())
	c.sleepFn = func(time.Duration) {}
	return c, srv
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.AccountEntry{Number: "short"}, config.KISConfig{SimBaseURL: "https://x"})
	assert.Error(t, err)

	_, err = NewClient(testAccount(), config.KISConfig{})
	assert.Error(t, err) // 缺 base url

	c, err := NewClient(testAccount(), config.KISConfig{SimBaseURL: "https://sim.example"})
	require.NoError(t, err)
	assert.Equal(t, "acc1", c.AccountID())
	assert.True(t, c.Simulated())
	assert.Equal(t, "12345678", c.cano)
	assert.Equal(t, "01", c.prdtCode)
}

func TestTokenIssuedOnceAndCached(t *testing.T) {
	var tokenCalls, quoteCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/tokenP":
			atomic.AddInt32(&tokenCalls, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123", "expires_in": 86400})
		default:
			atomic.AddInt32(&quoteCalls, 1)
			assert.Equal(t, "Bearer tok-123", r.Header.Get("authorization"))
			assert.Equal(t, "key", r.Header.Get("appkey"))
			_, _ = w.Write([]byte(`{"rt_cd":"0","msg_cd":"0000","msg1":"ok","output":{"stck_prpr":"71000"}}`))
		}
	}))
	defer srv.Close()

	c, err := NewClient(testAccount(), testKISConfig())
	require.NoError(t, err)
	c.SetBaseURL(srv.URL)
	c.SetHTTPClient(srv.Client())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Quote(ctx, "005930")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
	assert.EqualValues(t, 3, atomic.LoadInt32(&quoteCalls))
}

func TestQuote(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FHKST01010100", r.Header.Get("tr_id"))
		assert.Equal(t, "005930", r.URL.Query().Get("FID_INPUT_ISCD"))
		_, _ = w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"71,000"}}`))
	})
	q, err := c.Quote(context.Background(), "005930")
	require.NoError(t, err)
	assert.EqualValues(t, 71000, q.Price)

	c2, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rt_cd":"0","output":{"stck_prpr":"0"}}`))
	})
	_, err = c2.Quote(context.Background(), "005930")
	assert.Error(t, err)
}

func TestBalanceParsesHoldingsAndSummary(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VTTC8434R", r.Header.Get("tr_id")) // 模拟账户
		_, _ = w.Write([]byte(`{
			"rt_cd":"0",
			"output1":[
				{"pdno":"005930","prdt_name":"삼성전자","hldg_qty":"10","pchs_avg_pric":"69500.00","pchs_amt":"695000","prpr":"71000"},
				{"pdno":"000660","prdt_name":"SK하이닉스","hldg_qty":"0"}
			],
			"output2":[{"tot_evlu_amt":"10710000","ord_psbl_cash":"10000000"}]
		}`))
	})
	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10710000, bal.TotalAssets)
	assert.EqualValues(t, 10000000, bal.OrderableCash)
	require.Len(t, bal.Holdings, 1) // 零持仓行被过滤
	assert.Equal(t, "005930", bal.Holdings[0].Symbol)
	assert.EqualValues(t, 10, bal.Holdings[0].Quantity)
	assert.EqualValues(t, 69500, bal.Holdings[0].AvgBuyPrice)
}

func TestPlaceOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "VTTC0802U", r.Header.Get("tr_id")) // 模拟买入
		assert.Equal(t, "hash-abc", r.Header.Get("hashkey"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "005930", body["PDNO"])
		assert.Equal(t, "10", body["ORD_QTY"])
		assert.Equal(t, "71000", body["ORD_UNPR"])
		assert.Equal(t, "00", body["ORD_DVSN"])
		_, _ = w.Write([]byte(`{"rt_cd":"0","msg1":"주문 전송 완료 되었습니다.","output":{"ODNO":"0000117057"}}`))
	})
	ack, err := c.PlaceOrder(context.Background(), "005930", types.SideBuy, 10, 71000)
	require.NoError(t, err)
	assert.Equal(t, "0000117057", ack.OrderID)
}

func TestPlaceOrderBusinessRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rt_cd":"1","msg_cd":"40250000","msg1":"모의투자 주문가능금액이 부족합니다"}`))
	})
	_, err := c.PlaceOrder(context.Background(), "005930", types.SideBuy, 10, 71000)
	require.Error(t, err)
	assert.True(t, IsBusinessError(err))
	assert.NotErrorIs(t, err, ErrNoResponse)
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})
	_, err := c.PlaceOrder(context.Background(), "005930", "HOLD", 10, 71000)
	assert.Error(t, err)
	_, err = c.PlaceOrder(context.Background(), "005930", types.SideSell, 0, 71000)
	assert.Error(t, err)
}

func TestTransportFailureExhaustsRetries(t *testing.T) {
	var calls int32
	c, srv := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close() // 掐断连接模拟无响应
	})
	_ = srv

	_, err := c.Quote(context.Background(), "005930")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDailyCandlesSortedAscending(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FHKST03010100", r.Header.Get("tr_id"))
		assert.Equal(t, "J", r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"))
		// KIS 按日期倒序返回。
		_, _ = w.Write([]byte(`{"rt_cd":"0","output2":[
			{"stck_bsop_date":"20250103","stck_clpr":"103","stck_oprc":"100","stck_hgpr":"105","stck_lwpr":"99","acml_vol":"300"},
			{"stck_bsop_date":"20250102","stck_clpr":"102","stck_oprc":"100","stck_hgpr":"104","stck_lwpr":"98","acml_vol":"200"},
			{"stck_bsop_date":"bad","stck_clpr":"101"},
			{"stck_bsop_date":"20250101","stck_clpr":"0"},
			{"stck_bsop_date":"20241231","stck_clpr":"100","acml_vol":"100"}
		]}`))
	})
	candles, err := c.DailyCandles(context.Background(), "005930", 30)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.True(t, candles[0].Date.Before(candles[1].Date))
	assert.True(t, candles[1].Date.Before(candles[2].Date))
	assert.EqualValues(t, 103, candles[2].Close)
}

func TestIndexDailyCandlesUsesIndexMarketCode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "U", r.URL.Query().Get("FID_COND_MRKT_DIV_CODE"))
		_, _ = w.Write([]byte(`{"rt_cd":"0","output2":[{"stck_bsop_date":"20250102","stck_clpr":"2500"}]}`))
	})
	candles, err := c.IndexDailyCandles(context.Background(), "0001", 30)
	require.NoError(t, err)
	require.Len(t, candles, 1)
}

func TestApprovalKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/Approval", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "key", body["appkey"])
		assert.Equal(t, "secret", body["secretkey"])
		_, _ = w.Write([]byte(`{"approval_key":"ap-key-1"}`))
	})
	key, err := c.ApprovalKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ap-key-1", key)
}

func TestMarketOpenFollowsBsopFlag(t *testing.T) {
	// 명확한 개장 신호.
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rt_cd":"0","output":{"bsop_yn":"Y"}}`))
	})
	weekendNight := time.Date(2025, 1, 5, 3, 0, 0, 0, time.UTC) // 周日
	assert.True(t, c.marketOpenAt(context.Background(), weekendNight))

	// 명확한 휴장 신호，名义时段之外不翻转。
	c2, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rt_cd":"0","output":{"bsop_yn":"N"}}`))
	})
	assert.False(t, c2.marketOpenAt(context.Background(), weekendNight))
}

func TestMarketOpenFallsBackToNominalHours(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	})
	// 周三 10:00 KST = 01:00 UTC。
	tradingTime := time.Date(2025, 1, 8, 1, 0, 0, 0, time.UTC)
	assert.True(t, c.marketOpenAt(context.Background(), tradingTime))

	c2, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	})
	nightTime := time.Date(2025, 1, 8, 14, 0, 0, 0, time.UTC) // 23:00 KST
	assert.False(t, c2.marketOpenAt(context.Background(), nightTime))
}
