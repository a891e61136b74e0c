package engine

import (
	"context"
	"sort"
	"sync"

	"hansu/internal/gateway/kis"
	"hansu/internal/store"
	"hansu/internal/store/model"
	"hansu/internal/types"
)

// memStore 是测试用的内存存储，行为与 gormstore 对齐：
// 未命中返回 (nil, nil)，Save 落库副本。
type memStore struct {
	mu         sync.Mutex
	orders     map[string]model.OrderModel
	positions  map[int64]model.PositionModel
	candidates map[string]model.CandidateModel
	nextPosID  int64
}

func newMemStore() *memStore {
	return &memStore{
		orders:     make(map[string]model.OrderModel),
		positions:  make(map[int64]model.PositionModel),
		candidates: make(map[string]model.CandidateModel),
	}
}

func (s *memStore) Begin(context.Context) (store.UnitOfWork, error) { return &memUow{s: s}, nil }
func (s *memStore) Orders() store.OrderRepository                   { return &memOrders{s: s} }
func (s *memStore) Positions() store.PositionRepository             { return &memPositions{s: s} }
func (s *memStore) Candidates() store.CandidateRepository           { return &memCandidates{s: s} }
func (s *memStore) Close() error                                    { return nil }

type memUow struct{ s *memStore }

func (u *memUow) Commit() error                      { return nil }
func (u *memUow) Rollback() error                    { return nil }
func (u *memUow) Orders() store.OrderRepository      { return &memOrders{s: u.s} }
func (u *memUow) Positions() store.PositionRepository { return &memPositions{s: u.s} }

type memOrders struct{ s *memStore }

func (r *memOrders) Save(_ context.Context, order *model.OrderModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders[order.ID] = *order
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id string) (*model.OrderModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o, ok := r.s.orders[id]; ok {
		cp := o
		return &cp, nil
	}
	return nil, nil
}

func (r *memOrders) FindByBrokerOrderID(_ context.Context, accountID, brokerOrderID string) (*model.OrderModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.AccountID == accountID && o.BrokerOrderID != "" && o.BrokerOrderID == brokerOrderID {
			cp := o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memOrders) FindPending(_ context.Context, accountID, symbol, side string) (*model.OrderModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.AccountID == accountID && o.Symbol == symbol && string(o.Side) == side && !o.Status.Terminal() {
			cp := o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memOrders) ListPending(_ context.Context, accountID string) ([]model.OrderModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.OrderModel
	for _, o := range r.s.orders {
		if o.AccountID == accountID && !o.Status.Terminal() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrders) ListRecent(_ context.Context, accountID string, limit int) ([]model.OrderModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.OrderModel
	for _, o := range r.s.orders {
		if o.AccountID == accountID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memPositions struct{ s *memStore }

func (r *memPositions) Save(_ context.Context, pos *model.PositionModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if pos.ID == 0 {
		r.s.nextPosID++
		pos.ID = r.s.nextPosID
	}
	r.s.positions[pos.ID] = *pos
	return nil
}

func (r *memPositions) FindOpen(_ context.Context, accountID, symbol string) (*model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.positions {
		if p.AccountID == accountID && p.Symbol == symbol && p.IsOpen == 1 {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPositions) ListOpen(_ context.Context, accountID string) ([]model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PositionModel
	for _, p := range r.s.positions {
		if p.AccountID == accountID && p.IsOpen == 1 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPositions) ListRecent(_ context.Context, accountID string, limit int) ([]model.PositionModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.PositionModel
	for _, p := range r.s.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memCandidates struct{ s *memStore }

func (r *memCandidates) Upsert(_ context.Context, cand *model.CandidateModel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.candidates[cand.Symbol] = *cand
	return nil
}

func (r *memCandidates) Find(_ context.Context, symbol string) (*model.CandidateModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.candidates[symbol]; ok {
		cp := c
		return &cp, nil
	}
	return nil, nil
}

func (r *memCandidates) ListInvestable(_ context.Context, horizon string) ([]model.CandidateModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CandidateModel
	for _, c := range r.s.candidates {
		if c.Investable != 1 {
			continue
		}
		if horizon != "" && string(c.Horizon) != horizon {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// fakeBroker 可编排的券商替身。
type fakeBroker struct {
	mu sync.Mutex

	id         string
	balance    types.BalanceSummary
	balanceErr error
	quotes     map[string]float64
	candles    map[string][]types.Candle
	index      []types.Candle
	open       bool

	ack         kis.OrderAck
	placeErr    error
	placeHook   func()
	balanceHook func()

	balanceCalls int
	placeCalls   int
}

func (b *fakeBroker) AccountID() string { return b.id }
func (b *fakeBroker) Simulated() bool   { return true }

func (b *fakeBroker) Balance(context.Context) (types.BalanceSummary, error) {
	b.mu.Lock()
	b.balanceCalls++
	b.mu.Unlock()
	if b.balanceHook != nil {
		b.balanceHook()
	}
	if b.balanceErr != nil {
		return types.BalanceSummary{}, b.balanceErr
	}
	return b.balance, nil
}

func (b *fakeBroker) Quote(_ context.Context, symbol string) (types.Quote, error) {
	return types.Quote{Symbol: symbol, Price: b.quotes[symbol]}, nil
}

func (b *fakeBroker) PlaceOrder(context.Context, string, types.Side, int64, float64) (kis.OrderAck, error) {
	b.mu.Lock()
	b.placeCalls++
	b.mu.Unlock()
	if b.placeHook != nil {
		b.placeHook()
	}
	if b.placeErr != nil {
		return kis.OrderAck{}, b.placeErr
	}
	return b.ack, nil
}

func (b *fakeBroker) DailyCandles(_ context.Context, symbol string, _ int) ([]types.Candle, error) {
	return b.candles[symbol], nil
}

func (b *fakeBroker) IndexDailyCandles(context.Context, string, int) ([]types.Candle, error) {
	return b.index, nil
}

func (b *fakeBroker) MarketOpen(context.Context) bool            { return b.open }
func (b *fakeBroker) ApprovalKey(context.Context) (string, error) { return "fake-key", nil }

// captureNotifier 记录发出的通知文本。
type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *captureNotifier) SendText(text string) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, text)
	n.mu.Unlock()
	return nil
}

func (n *captureNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}
