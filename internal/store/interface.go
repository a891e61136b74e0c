package store

import (
	"context"

	"hansu/internal/store/model"
)

// UnitOfWork defines a transaction scope. Fill application runs order and
// position mutations inside one unit so partial writes cannot survive a
// crash.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Orders() OrderRepository
	Positions() PositionRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)

	Orders() OrderRepository
	Positions() PositionRepository
	Candidates() CandidateRepository

	Close() error
}

// OrderRepository handles order persistence.
type OrderRepository interface {
	Save(ctx context.Context, order *model.OrderModel) error
	FindByID(ctx context.Context, id string) (*model.OrderModel, error)
	// FindByBrokerOrderID looks an order up by its broker id within one
	// account. Used to dedup execution reports.
	FindByBrokerOrderID(ctx context.Context, accountID, brokerOrderID string) (*model.OrderModel, error)
	// FindPending returns the live (CREATED or PENDING) order for the
	// given account, symbol and side, if any.
	FindPending(ctx context.Context, accountID, symbol string, side string) (*model.OrderModel, error)
	ListPending(ctx context.Context, accountID string) ([]model.OrderModel, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]model.OrderModel, error)
}

// PositionRepository handles position persistence.
type PositionRepository interface {
	Save(ctx context.Context, pos *model.PositionModel) error
	FindOpen(ctx context.Context, accountID, symbol string) (*model.PositionModel, error)
	ListOpen(ctx context.Context, accountID string) ([]model.PositionModel, error)
	ListRecent(ctx context.Context, accountID string, limit int) ([]model.PositionModel, error)
}

// CandidateRepository handles the screened-symbol pool.
type CandidateRepository interface {
	Upsert(ctx context.Context, cand *model.CandidateModel) error
	Find(ctx context.Context, symbol string) (*model.CandidateModel, error)
	ListInvestable(ctx context.Context, horizon string) ([]model.CandidateModel, error)
}
