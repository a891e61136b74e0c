// Package gormstore implements store.Store on top of Gorm + SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hansu/internal/store"
	"hansu/internal/store/model"
)

type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (and if needed creates) the SQLite database at path
// and runs migrations.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL：给并发的 HTTP 只读查询留一点余量，同时压低锁竞争。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.OrderModel{},
		&model.PositionModel{},
		&model.CandidateModel{},
	); err != nil {
		return err
	}
	// 部分唯一索引 AutoMigrate 表达不了，用裸 SQL 补。
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_open_position
		   ON positions(account_id, symbol) WHERE is_open = 1`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_live_order
		   ON orders(account_id, symbol, side) WHERE status IN ('CREATED','PENDING')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_broker_order
		   ON orders(account_id, broker_order_id) WHERE broker_order_id != ''`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("创建索引失败: %w", err)
		}
	}
	return nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormDB exposes the underlying *gorm.DB for read-only observers.
func (s *GormStore) GormDB() *gorm.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *GormStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &unitOfWork{tx: tx}, nil
}

func (s *GormStore) Orders() store.OrderRepository       { return &orderRepo{db: s.db} }
func (s *GormStore) Positions() store.PositionRepository { return &positionRepo{db: s.db} }
func (s *GormStore) Candidates() store.CandidateRepository {
	return &candidateRepo{db: s.db}
}

var _ store.Store = (*GormStore)(nil)

type unitOfWork struct {
	tx *gorm.DB
}

func (u *unitOfWork) Commit() error   { return u.tx.Commit().Error }
func (u *unitOfWork) Rollback() error { return u.tx.Rollback().Error }

func (u *unitOfWork) Orders() store.OrderRepository       { return &orderRepo{db: u.tx} }
func (u *unitOfWork) Positions() store.PositionRepository { return &positionRepo{db: u.tx} }

// notFound maps gorm's sentinel to a (nil, nil) miss, the repository
// convention used throughout the engine.
func notFound(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	return false, err
}
