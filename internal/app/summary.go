package app

import (
	"fmt"
	"time"

	"hansu/internal/config"
	"hansu/internal/engine"
	"hansu/internal/gateway/notifier"
	"hansu/internal/logger"
	"hansu/internal/strategy"
)

// StartupSummary 汇总启动配置，打印到日志并推送一条通知。
type StartupSummary struct {
	Accounts []string
	Entry    string
	Cycle    string
	HTTPAddr string

	notifier notifier.TextNotifier
}

func buildSummary(cfg *config.Config, accounts []*engine.AccountRuntime, entry strategy.EntryStrategy, tn notifier.TextNotifier) *StartupSummary {
	s := &StartupSummary{
		Entry:    entry.Name(),
		HTTPAddr: cfg.App.HTTPAddr,
		Cycle:    "外部触发",
		notifier: tn,
	}
	if cfg.Cycle.Enabled {
		s.Cycle = fmt.Sprintf("每 %dh+%dm", cfg.Cycle.IntervalHours, cfg.Cycle.OffsetMinutes)
	}
	for _, rt := range accounts {
		kind := "模拟"
		if !rt.Entry.Simulated() {
			kind = "实盘"
		}
		s.Accounts = append(s.Accounts, fmt.Sprintf("%s (%s, %s)", rt.Entry.ID, rt.Entry.Name, kind))
	}
	return s
}

func (s *StartupSummary) Print() {
	logger.Infof("✓ 已加载 %d 个账户: %v", len(s.Accounts), s.Accounts)
	logger.Infof("✓ 入场策略: %s | 调度: %s | HTTP: %s", s.Entry, s.Cycle, s.HTTPAddr)
}

// Notify pushes the summary through the configured channels so the
// operator sees restarts.
func (s *StartupSummary) Notify() {
	if s.notifier == nil {
		return
	}
	msg := notifier.StructuredMessage{
		Icon:  "🚀",
		Title: "hansu 启动",
		Sections: []notifier.MessageSection{
			{Title: "账户", Lines: s.Accounts},
			{Title: "配置", Lines: []string{
				"入场策略：" + s.Entry,
				"交易周期：" + s.Cycle,
				"HTTP：" + s.HTTPAddr,
			}},
		},
		Timestamp: time.Now(),
	}
	go func() {
		if err := s.notifier.SendText(msg.RenderMarkdown()); err != nil {
			logger.Warnf("启动通知发送失败: %v", err)
		}
	}()
}
