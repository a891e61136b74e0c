// Package bus provides a single-goroutine event dispatcher. All domain
// events are processed sequentially on one loop, which gives subscribers
// per-source ordering without their own locking.
package bus

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"hansu/internal/logger"
)

// Handler consumes one event. Handlers run on the dispatch goroutine
// and must not block for long.
type Handler func(Event)

type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	msgCh  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func New() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		msgCh:    make(chan Event, 256),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers a handler for one event type. Handlers registered
// for the same type run in registration order.
func (b *Bus) Subscribe(t EventType, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()
}

func (b *Bus) Start() {
	b.wg.Add(1)
	go b.runLoop()
}

func (b *Bus) Stop() {
	b.once.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

// Publish enqueues an event, blocking until accepted. Order and position
// events must not be lost, so callers wait when the queue is full.
func (b *Bus) Publish(evt Event) error {
	select {
	case b.msgCh <- evt:
		return nil
	case <-b.stopCh:
		return fmt.Errorf("事件总线已停止")
	}
}

// TryPublish enqueues without blocking. Meant for price.tick style events
// where dropping under pressure is acceptable.
func (b *Bus) TryPublish(evt Event) {
	select {
	case b.msgCh <- evt:
	default:
		logger.Warnf("事件队列已满，丢弃 %s (%s/%s)", evt.Type, evt.AccountID, evt.Symbol)
	}
}

func (b *Bus) runLoop() {
	defer b.wg.Done()
	logger.Infof("事件总线启动")
	for {
		select {
		case evt := <-b.msgCh:
			b.dispatch(evt)
		case <-b.stopCh:
			// 清空残余事件，保证已受理的订单事件不丢。
			for {
				select {
				case evt := <-b.msgCh:
					b.dispatch(evt)
				default:
					logger.Infof("事件总线停止")
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(evt Event) {
	start := time.Now()
	b.mu.RLock()
	hs := b.handlers[evt.Type]
	b.mu.RUnlock()
	if len(hs) == 0 && evt.Type != EvtPriceTick {
		logger.Debugf("事件 %s 无订阅者", evt.Type)
		return
	}
	for _, h := range hs {
		b.invoke(evt, h)
	}
	if dur := time.Since(start); dur > 100*time.Millisecond {
		logger.Warnf("事件 %s 处理耗时 %v", evt.Type, dur)
	}
}

// invoke recovers per handler, so one panicking subscriber cannot rob
// the ones registered after it of the same event.
func (b *Bus) invoke(evt Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("事件 %s 处理 panic: %v", evt.Type, r)
			debug.PrintStack()
		}
	}()
	h(evt)
}
