package gormstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hansu/internal/store/model"
)

type candidateRepo struct {
	db *gorm.DB
}

func (r *candidateRepo) Upsert(ctx context.Context, cand *model.CandidateModel) error {
	if cand == nil || strings.TrimSpace(cand.Symbol) == "" {
		return fmt.Errorf("候选标的 symbol 必填")
	}
	cand.UpdatedAtUnix = time.Now().UnixMilli()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "horizon", "stop_loss", "target",
				"last_price", "atr", "investable", "meta", "updated_at",
			}),
		}).
		Create(cand).Error
}

func (r *candidateRepo) Find(ctx context.Context, symbol string) (*model.CandidateModel, error) {
	var m model.CandidateModel
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&m).Error
	if miss, err := notFound(err); miss || err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *candidateRepo) ListInvestable(ctx context.Context, horizon string) ([]model.CandidateModel, error) {
	q := r.db.WithContext(ctx).Where("investable = 1")
	if horizon != "" {
		q = q.Where("horizon = ?", horizon)
	}
	var out []model.CandidateModel
	err := q.Order("updated_at DESC, id DESC").Find(&out).Error
	return out, err
}
