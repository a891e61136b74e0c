package notifier

// TextNotifier defines a minimal text notification interface. It is
// intentionally small so engine components can depend on it without
// importing concrete implementations.
type TextNotifier interface {
	SendText(text string) error
}

// Noop swallows every message; used when no channel is configured.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
