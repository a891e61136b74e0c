// Package stream maintains the realtime execution-report channel to the
// brokerage push server, one connection per account, with reconnect and
// resubscribe handled by a supervisor loop.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hansu/internal/config"
	"hansu/internal/logger"
	"hansu/internal/types"
)

// FillHandler consumes confirmed fills. It is called from the read loop
// and must not block.
type FillHandler func(types.Fill)

// TickHandler consumes realtime prices for subscribed symbols. Same
// non-blocking contract as FillHandler.
type TickHandler func(symbol string, price float64)

// keyIssuer mints the push-channel approval key; implemented by the KIS
// client.
type keyIssuer interface {
	AccountID() string
	Simulated() bool
	ApprovalKey(ctx context.Context) (string, error)
}

// Conn is the minimal websocket surface the supervisor needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens one websocket connection.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func defaultDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Stats is a snapshot of the supervisor's health counters.
type Stats struct {
	Connected  bool   `json:"connected"`
	Reconnects int64  `json:"reconnects"`
	Fills      int64  `json:"fills"`
	Ticks      int64  `json:"ticks"`
	Dropped    int64  `json:"dropped_frames"`
	LastError  string `json:"last_error,omitempty"`
}

// Supervisor owns the push connection of one account. Run blocks until
// the context ends, reconnecting with exponentially growing delay that
// resets after a successful subscribe.
type Supervisor struct {
	account config.AccountEntry
	cfg     config.StreamConfig
	issuer  keyIssuer
	handler FillHandler
	dial    DialFunc
	sleep   func(ctx context.Context, d time.Duration) bool

	tickSymbols func() []string
	ticks       TickHandler

	statsMu sync.Mutex
	stats   Stats
}

func NewSupervisor(account config.AccountEntry, cfg config.StreamConfig, issuer keyIssuer, handler FillHandler) *Supervisor {
	return &Supervisor{
		account: account,
		cfg:     cfg,
		issuer:  issuer,
		handler: handler,
		dial:    defaultDial,
		sleep:   sleepWithContext,
	}
}

// SetDial replaces the dialer; tests inject in-memory connections.
func (s *Supervisor) SetDial(d DialFunc) { s.dial = d }

// SetTicks enables realtime price subscriptions. symbols is re-evaluated
// at every (re)connect, so open positions gained since the last connect
// get picked up on the next reconnect.
func (s *Supervisor) SetTicks(symbols func() []string, handler TickHandler) {
	s.tickSymbols = symbols
	s.ticks = handler
}

func (s *Supervisor) url() string {
	if s.account.Simulated() {
		return s.cfg.SimURL
	}
	return s.cfg.RealURL
}

// Run drives the connect / subscribe / read cycle until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	accountID := s.account.ID
	delay := s.cfg.InitialDelay()
	for {
		if ctx.Err() != nil {
			return
		}
		subscribed, err := s.runOnce(ctx)
		s.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			// 成功建立过的连接断开后从初始间隔重来。
			delay = s.cfg.InitialDelay()
		}
		if err != nil {
			s.recordError(err)
			logger.Warnf("[stream:%s] 连接中断: %v，%v 后重连", accountID, err, delay)
		}
		if !s.sleep(ctx, delay) {
			return
		}
		if !subscribed {
			delay = s.nextDelay(delay)
		}
	}
}

// runOnce performs one connection lifetime: dial, subscribe, then read
// until failure. It reports whether the subscribe succeeded so the
// caller can reset the backoff.
func (s *Supervisor) runOnce(ctx context.Context) (bool, error) {
	accountID := s.account.ID

	key, err := s.issuer.ApprovalKey(ctx)
	if err != nil {
		return false, fmt.Errorf("approval key 签发失败: %w", err)
	}

	conn, err := s.dial(ctx, s.url())
	if err != nil {
		return false, fmt.Errorf("拨号失败: %w", err)
	}
	defer conn.Close()

	if err := s.subscribe(conn, key); err != nil {
		return false, fmt.Errorf("订阅失败: %w", err)
	}
	logger.Infof("[stream:%s] 已连接并订阅实时体结通报", accountID)
	s.setConnected(true)

	for {
		if ctx.Err() != nil {
			return true, nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		s.handleMessage(conn, raw)
	}
}

func (s *Supervisor) subscribe(conn Conn, approvalKey string) error {
	trID := trIDExecReal
	if s.account.Simulated() {
		trID = trIDExecSim
	}
	if err := s.writeSubscribe(conn, approvalKey, trID, s.account.Number); err != nil {
		return err
	}
	if s.tickSymbols == nil {
		return nil
	}
	for _, symbol := range s.tickSymbols() {
		if err := s.writeSubscribe(conn, approvalKey, trIDPrice, symbol); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) writeSubscribe(conn Conn, approvalKey, trID, trKey string) error {
	payload := map[string]any{
		"header": map[string]string{
			"approval_key": approvalKey,
			"custtype":     "P",
			"tr_type":      "1",
			"content-type": "utf-8",
		},
		"body": map[string]any{
			"input": map[string]string{
				"tr_id":  trID,
				"tr_key": trKey,
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Supervisor) handleMessage(conn Conn, raw []byte) {
	accountID := s.account.ID
	switch classify(raw) {
	case frameExec:
		switch dataTrID(raw) {
		case trIDPrice:
			symbol, price, err := parsePriceFrame(raw)
			if err != nil {
				s.dropFrame(err)
				return
			}
			s.statsMu.Lock()
			s.stats.Ticks++
			s.statsMu.Unlock()
			if s.ticks != nil {
				s.ticks(symbol, price)
			}
		case trIDExecReal, trIDExecSim:
			fill, ok, err := parseExecFrame(accountID, raw)
			if err != nil {
				s.dropFrame(err)
				return
			}
			if !ok {
				logger.Debugf("[stream:%s] 接受/拒绝通报，忽略", accountID)
				return
			}
			s.statsMu.Lock()
			s.stats.Fills++
			s.statsMu.Unlock()
			logger.Infof("[stream:%s] 体结通报 %s %s x%d @%.0f broker_order_id=%s",
				accountID, fill.Side, fill.Symbol, fill.Quantity, fill.Price, fill.BrokerOrderID)
			if s.handler != nil {
				s.handler(fill)
			}
		default:
			s.dropFrame(fmt.Errorf("未订阅的 tr_id %q", dataTrID(raw)))
		}
	case framePingPong:
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			logger.Warnf("[stream:%s] PINGPONG 回复失败: %v", accountID, err)
		}
	case frameControl:
		logger.Infof("[stream:%s] 服务端消息: %s", accountID, truncate(raw, 300))
	default:
		logger.Warnf("[stream:%s] 未知消息: %s", accountID, truncate(raw, 120))
	}
}

func (s *Supervisor) dropFrame(err error) {
	s.statsMu.Lock()
	s.stats.Dropped++
	s.statsMu.Unlock()
	logger.Warnf("[stream:%s] 丢弃畸形帧: %v", s.account.ID, err)
}

func (s *Supervisor) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Supervisor) setConnected(v bool) {
	s.statsMu.Lock()
	s.stats.Connected = v
	s.statsMu.Unlock()
}

func (s *Supervisor) recordError(err error) {
	s.statsMu.Lock()
	s.stats.Reconnects++
	s.stats.LastError = err.Error()
	s.statsMu.Unlock()
}

// nextDelay doubles the backoff up to the configured ceiling.
func (s *Supervisor) nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return s.cfg.InitialDelay()
	}
	next := current * 2
	if max := s.cfg.MaxDelay(); next > max {
		next = max
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
