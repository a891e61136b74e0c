package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hansu/internal/store/model"
)

type positionRepo struct {
	db *gorm.DB
}

func (r *positionRepo) Save(ctx context.Context, pos *model.PositionModel) error {
	if pos == nil {
		return fmt.Errorf("持仓记录为空")
	}
	pos.UpdatedAtUnix = time.Now().UnixMilli()
	return r.db.WithContext(ctx).Save(pos).Error
}

func (r *positionRepo) FindOpen(ctx context.Context, accountID, symbol string) (*model.PositionModel, error) {
	var m model.PositionModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ? AND is_open = 1", accountID, symbol).
		First(&m).Error
	if miss, err := notFound(err); miss || err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *positionRepo) ListOpen(ctx context.Context, accountID string) ([]model.PositionModel, error) {
	var out []model.PositionModel
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND is_open = 1", accountID).
		Order("opened_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *positionRepo) ListRecent(ctx context.Context, accountID string, limit int) ([]model.PositionModel, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.PositionModel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
