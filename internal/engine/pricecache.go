package engine

import (
	"sync"

	"hansu/internal/bus"
)

// PriceCache keeps the last streamed price per (account, symbol) for
// read paths that want a fresher mark than the daily close.
type PriceCache struct {
	mu sync.RWMutex
	m  map[string]float64
}

func NewPriceCache() *PriceCache {
	return &PriceCache{m: make(map[string]float64)}
}

// Attach subscribes the cache to realtime ticks on the bus.
func (p *PriceCache) Attach(b *bus.Bus) {
	b.Subscribe(bus.EvtPriceTick, func(evt bus.Event) {
		tick, ok := evt.Payload.(bus.PriceTick)
		if !ok || tick.Price <= 0 {
			return
		}
		p.mu.Lock()
		p.m[lockKey(evt.AccountID, evt.Symbol)] = tick.Price
		p.mu.Unlock()
	})
}

// Last returns the most recent streamed price, if one has been seen.
func (p *PriceCache) Last(accountID, symbol string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[lockKey(accountID, symbol)]
	return v, ok
}
