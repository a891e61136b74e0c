package livehttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"hansu/internal/engine"
	"hansu/internal/logger"
	"hansu/internal/store"
	"hansu/internal/store/eventlog"
	"hansu/internal/store/model"
	"hansu/internal/stream"
	"hansu/internal/types"
)

// Router 暴露实盘查询与少量运维操作。
type Router struct {
	Store   store.Store
	Trading *engine.TradingService
	Orders  *engine.OrderService
	Events  *eventlog.Store
	Streams map[string]*stream.Supervisor
	Prices  *engine.PriceCache
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/accounts", r.handleAccounts)
	group.GET("/orders", r.handleOrders)
	group.POST("/orders/:id/cancel", r.handleOrderCancel)
	group.GET("/positions", r.handlePositions)
	group.GET("/candidates", r.handleCandidates)
	group.POST("/candidates", r.handleCandidateUpsert)
	group.GET("/events", r.handleEvents)
	group.GET("/stream/stats", r.handleStreamStats)
	group.POST("/cycle/run", r.handleCycleRun)
}

func (r *Router) accountParam(c *gin.Context) (string, bool) {
	accountID := strings.TrimSpace(c.Query("account"))
	if accountID == "" {
		ids := r.Trading.AccountIDs()
		if len(ids) == 1 {
			return ids[0], true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "account 必填"})
		return "", false
	}
	if _, ok := r.Trading.Account(accountID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "未知账户: " + accountID})
		return "", false
	}
	return accountID, true
}

func (r *Router) handleAccounts(c *gin.Context) {
	type accountView struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		Connected bool   `json:"stream_connected"`
	}
	out := make([]accountView, 0)
	for _, id := range r.Trading.AccountIDs() {
		rt, _ := r.Trading.Account(id)
		view := accountView{ID: id, Name: rt.Entry.Name, Kind: rt.Entry.Kind}
		if sup, ok := r.Streams[id]; ok {
			view.Connected = sup.Stats().Connected
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (r *Router) handleOrders(c *gin.Context) {
	accountID, ok := r.accountParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := r.Store.Orders().ListRecent(c.Request.Context(), accountID, limit)
	if err != nil {
		logger.Errorf("[api] 订单查询失败 account=%s err=%v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleOrderCancel(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("id"))
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "订单 id 必填"})
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "手动取消"
	}
	if err := r.Orders.Cancel(c.Request.Context(), orderID, req.Reason); err != nil {
		logger.Warnf("[api] 取消订单失败 id=%s err=%v", orderID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handlePositions(c *gin.Context) {
	accountID, ok := r.accountParam(c)
	if !ok {
		return
	}
	status := strings.ToLower(c.DefaultQuery("status", "open"))
	var (
		positions []model.PositionModel
		err       error
	)
	if status == "open" {
		positions, err = r.Store.Positions().ListOpen(c.Request.Context(), accountID)
	} else {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		positions, err = r.Store.Positions().ListRecent(c.Request.Context(), accountID, limit)
	}
	if err != nil {
		logger.Errorf("[api] 持仓查询失败 account=%s err=%v", accountID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 推送行情缓存里有更新的现价时，顺带给出浮动盈亏。
	type positionView struct {
		model.PositionModel
		LastPrice     float64 `json:"last_price,omitempty"`
		UnrealizedPnL float64 `json:"unrealized_pnl,omitempty"`
	}
	out := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		view := positionView{PositionModel: pos}
		if r.Prices != nil && pos.IsOpen == 1 {
			if price, ok := r.Prices.Last(accountID, pos.Symbol); ok {
				view.LastPrice = price
				view.UnrealizedPnL = (price - pos.AvgCost) * float64(pos.Quantity)
			}
		}
		out = append(out, view)
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

func (r *Router) handleCandidates(c *gin.Context) {
	horizon := strings.ToUpper(strings.TrimSpace(c.Query("horizon")))
	cands, err := r.Store.Candidates().ListInvestable(c.Request.Context(), horizon)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": cands})
}

type candidateUpsertRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	Name       string  `json:"name"`
	Horizon    string  `json:"horizon"`
	StopLoss   float64 `json:"stop_loss"`
	Target     float64 `json:"target"`
	LastPrice  float64 `json:"last_price"`
	ATR        float64 `json:"atr"`
	Investable bool    `json:"investable"`
	Meta       string  `json:"meta"`
}

// handleCandidateUpsert ingests one screened symbol from the external
// scorer feed.
func (r *Router) handleCandidateUpsert(c *gin.Context) {
	var req candidateUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	horizon := types.Horizon(strings.ToUpper(strings.TrimSpace(req.Horizon)))
	if horizon != types.HorizonShort && horizon != types.HorizonLong {
		c.JSON(http.StatusBadRequest, gin.H{"error": "horizon 必须是 SHORT 或 LONG"})
		return
	}
	investable := 0
	if req.Investable {
		investable = 1
	}
	meta := strings.TrimSpace(req.Meta)
	if meta == "" {
		meta = "{}"
	}
	cand := &model.CandidateModel{
		Symbol:     strings.TrimSpace(req.Symbol),
		Name:       req.Name,
		Horizon:    horizon,
		StopLoss:   req.StopLoss,
		Target:     req.Target,
		LastPrice:  req.LastPrice,
		ATR:        req.ATR,
		Investable: investable,
		Meta:       datatypes.JSON(meta),
	}
	if err := r.Store.Candidates().Upsert(c.Request.Context(), cand); err != nil {
		logger.Errorf("[api] 候选标的写入失败 symbol=%s err=%v", req.Symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] 候选标的更新 symbol=%s horizon=%s investable=%v ip=%s",
		cand.Symbol, horizon, req.Investable, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "事件审计未启用"})
		return
	}
	accountID := strings.TrimSpace(c.Query("account"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := r.Events.ListRecent(c.Request.Context(), accountID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (r *Router) handleStreamStats(c *gin.Context) {
	out := make(map[string]stream.Stats, len(r.Streams))
	for id, sup := range r.Streams {
		out[id] = sup.Stats()
	}
	c.JSON(http.StatusOK, gin.H{"streams": out})
}

// handleCycleRun triggers one trading cycle out of schedule. The cycle
// mutex still applies, so a concurrent trigger is a no-op.
func (r *Router) handleCycleRun(c *gin.Context) {
	accountID, ok := r.accountParam(c)
	if !ok {
		return
	}
	logger.Infof("[api] 手动触发交易周期 account=%s ip=%s", accountID, c.ClientIP())
	// 周期在请求结束后继续跑，不能挂在请求 context 上。
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := r.Trading.RunTradingCycle(ctx, accountID); err != nil {
			logger.Errorf("[api] 手动交易周期失败 account=%s err=%v", accountID, err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
