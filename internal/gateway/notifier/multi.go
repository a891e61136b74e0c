package notifier

import (
	"hansu/internal/config"
	"hansu/internal/logger"
)

// Multi fans one message out to every configured channel. A failing
// channel is logged and does not block the others.
type Multi struct {
	targets []TextNotifier
}

func NewMulti(targets ...TextNotifier) *Multi {
	return &Multi{targets: targets}
}

func (m *Multi) SendText(text string) error {
	var last error
	for _, t := range m.targets {
		if err := t.SendText(text); err != nil {
			logger.Warnf("通知通道发送失败: %v", err)
			last = err
		}
	}
	return last
}

// FromConfig assembles the notifier stack from config. With nothing
// enabled it returns a Noop so callers never nil-check.
func FromConfig(cfg config.NotifyConfig) TextNotifier {
	var targets []TextNotifier
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		targets = append(targets, NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	switch len(targets) {
	case 0:
		return Noop{}
	case 1:
		return targets[0]
	default:
		return NewMulti(targets...)
	}
}
