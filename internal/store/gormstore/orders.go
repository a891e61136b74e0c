package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hansu/internal/store/model"
	"hansu/internal/types"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) Save(ctx context.Context, order *model.OrderModel) error {
	if order == nil || strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("订单 id 必填")
	}
	now := time.Now().UnixMilli()
	if order.CreatedAtUnix == 0 {
		order.CreatedAtUnix = now
	}
	order.UpdatedAtUnix = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "broker_order_id", "message",
				"filled_qty", "filled_price", "updated_at",
			}),
		}).
		Create(order).Error
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*model.OrderModel, error) {
	var m model.OrderModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if miss, err := notFound(err); miss || err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *orderRepo) FindByBrokerOrderID(ctx context.Context, accountID, brokerOrderID string) (*model.OrderModel, error) {
	brokerOrderID = strings.TrimSpace(brokerOrderID)
	if brokerOrderID == "" {
		return nil, nil
	}
	var m model.OrderModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND broker_order_id = ?", accountID, brokerOrderID).
		First(&m).Error
	if miss, err := notFound(err); miss || err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *orderRepo) FindPending(ctx context.Context, accountID, symbol string, side string) (*model.OrderModel, error) {
	var m model.OrderModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ? AND side = ? AND status IN ?",
			accountID, symbol, side,
			[]string{string(types.OrderStatusCreated), string(types.OrderStatusPending)}).
		First(&m).Error
	if miss, err := notFound(err); miss || err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *orderRepo) ListPending(ctx context.Context, accountID string) ([]model.OrderModel, error) {
	var out []model.OrderModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status IN ?", accountID,
			[]string{string(types.OrderStatusCreated), string(types.OrderStatusPending)}).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *orderRepo) ListRecent(ctx context.Context, accountID string, limit int) ([]model.OrderModel, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.OrderModel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
