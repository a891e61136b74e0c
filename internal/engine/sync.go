package engine

import (
	"context"
	"fmt"
	"time"

	"hansu/internal/logger"
	"hansu/internal/store/model"
	"hansu/internal/types"
)

// SyncPositions aligns local open positions with the broker's balance at
// startup. The broker is the source of truth for quantities: holdings we
// don't know get adopted, local rows the broker no longer reports get
// closed, mismatched quantities get overwritten. Stops and targets are
// local-only state and survive untouched.
func (s *TradingService) SyncPositions(ctx context.Context, accountID string) error {
	rt, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("未知账户: %s", accountID)
	}
	bal, err := rt.Broker.Balance(ctx)
	if err != nil {
		return fmt.Errorf("余额查询失败: %w", err)
	}

	held := make(map[string]types.Holding, len(bal.Holdings))
	for _, h := range bal.Holdings {
		held[h.Symbol] = h
	}

	local, err := s.store.Positions().ListOpen(ctx, accountID)
	if err != nil {
		return fmt.Errorf("持仓查询失败: %w", err)
	}
	seen := make(map[string]bool, len(local))

	for i := range local {
		pos := &local[i]
		seen[pos.Symbol] = true
		h, stillHeld := held[pos.Symbol]
		if !stillHeld {
			logger.Warnf("[sync:%s] 本地持仓 %s x%d 券商侧已不存在，标记关闭",
				accountID, pos.Symbol, pos.Quantity)
			pos.IsOpen = 0
			pos.ClosedAtUnix = time.Now().UnixMilli()
			if err := s.store.Positions().Save(ctx, pos); err != nil {
				return err
			}
			continue
		}
		if h.Quantity != pos.Quantity {
			logger.Warnf("[sync:%s] 持仓数量不一致 %s：本地 %d / 券商 %d，以券商为准",
				accountID, pos.Symbol, pos.Quantity, h.Quantity)
			pos.Quantity = h.Quantity
			pos.AvgCost = h.AvgBuyPrice
			if err := s.store.Positions().Save(ctx, pos); err != nil {
				return err
			}
		}
	}

	for symbol, h := range held {
		if seen[symbol] || h.Quantity <= 0 {
			continue
		}
		logger.Infof("[sync:%s] 采纳券商侧持仓 %s x%d @%.2f", accountID, symbol, h.Quantity, h.AvgBuyPrice)
		pos := &model.PositionModel{
			AccountID:    accountID,
			Symbol:       symbol,
			Quantity:     h.Quantity,
			AvgCost:      h.AvgBuyPrice,
			Horizon:      types.HorizonLong,
			IsOpen:       1,
			OpenedAtUnix: time.Now().UnixMilli(),
		}
		if err := s.store.Positions().Save(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}
