package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"inditrade-paper/internal/models"
)

// TerminalChannel prints notifications as single lines.
type TerminalChannel struct {
	mu   sync.Mutex
	w    io.Writer
	bell bool
}

// NewTerminalChannel writes to w. With bell set, target and stop exits ring
// the terminal bell.
func NewTerminalChannel(w io.Writer, bell bool) *TerminalChannel {
	return &TerminalChannel{w: w, bell: bell}
}

// Name implements Channel.
func (t *TerminalChannel) Name() string {
	return "terminal"
}

// Send implements Channel.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	line := fmt.Sprintf("[%s] %s %s: %s\n",
		n.Timestamp.Format("15:04:05"), icon(n), n.Title, n.Message)
	if t.bell && ringsBell(n) {
		line = "\a" + line
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, line)
	return err
}

func icon(n Notification) string {
	switch n.Kind {
	case KindOrderPlaced:
		return "📝"
	case KindSessionOpen:
		return "🔔"
	case KindSessionClosed:
		return "💤"
	}
	if n.Order == nil {
		return "•"
	}
	switch n.Order.CloseReason {
	case models.CloseReasonTarget:
		return "🎯"
	case models.CloseReasonStop:
		return "⚠️"
	default:
		return "✋"
	}
}

func ringsBell(n Notification) bool {
	if n.Kind != KindOrderClosed || n.Order == nil {
		return false
	}
	return n.Order.CloseReason == models.CloseReasonTarget || n.Order.CloseReason == models.CloseReasonStop
}
