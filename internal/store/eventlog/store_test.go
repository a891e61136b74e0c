package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"hansu/internal/bus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestAppendAndListRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, acc := range []string{"acc1", "acc1", "acc2"} {
		evt := bus.NewEvent(bus.EvtOrderExecuted, acc, "005930", bus.OrderEvent{Quantity: int64(i + 1)})
		evt.At = time.UnixMilli(int64(1000 + i))
		require.NoError(t, s.Append(ctx, evt))
	}

	all, err := s.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// 最新在前。
	assert.Equal(t, "acc2", all[0].AccountID)
	assert.EqualValues(t, 1002, all[0].TS)
	assert.EqualValues(t, 3, gjson.GetBytes(all[0].Payload, "Quantity").Int())

	acc1, err := s.ListRecent(ctx, "acc1", 10)
	require.NoError(t, err)
	require.Len(t, acc1, 2)
	for _, r := range acc1 {
		assert.Equal(t, "acc1", r.AccountID)
	}

	limited, err := s.ListRecent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAttachPersistsBusEvents(t *testing.T) {
	s := newTestStore(t)
	b := bus.New()
	s.Attach(b)
	b.Start()

	require.NoError(t, b.Publish(bus.NewEvent(bus.EvtOrderCreated, "acc1", "005930", bus.OrderEvent{Quantity: 10})))
	require.NoError(t, b.Publish(bus.NewEvent(bus.EvtPositionClosed, "acc1", "005930", bus.PositionEvent{Quantity: 0})))
	// 价格 tick 不进审计。
	require.NoError(t, b.Publish(bus.NewEvent(bus.EvtPriceTick, "acc1", "005930", bus.PriceTick{Price: 71000})))
	b.Stop()

	rows, err := s.ListRecent(context.Background(), "acc1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	types := []string{rows[0].Type, rows[1].Type}
	assert.Contains(t, types, string(bus.EvtOrderCreated))
	assert.Contains(t, types, string(bus.EvtPositionClosed))
}

func TestPruneRemovesOldRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := bus.NewEvent(bus.EvtOrderExecuted, "acc1", "005930", nil)
	old.At = time.Now().Add(-48 * time.Hour)
	require.NoError(t, s.Append(ctx, old))
	fresh := bus.NewEvent(bus.EvtOrderExecuted, "acc1", "005930", nil)
	require.NoError(t, s.Append(ctx, fresh))

	require.NoError(t, s.Prune(ctx, 24*time.Hour))

	rows, err := s.ListRecent(ctx, "acc1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.ID, rows[0].EventID)

	// retain<=0 是显式关闭，保留全部。
	assert.NoError(t, s.Prune(ctx, 0))
	rows, err = s.ListRecent(ctx, "acc1", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
