package platform

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Outbox is a Sender keeping delivered messages in memory.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
}

// Send records msg.
func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.sent)
}

// LogSender is a Sender that only logs each message. It stands in for
// platforms without a webhook.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a LogSender writing to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg at info level. The text itself is not logged.
func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "message delivered",
		"platform", msg.Platform,
		"bot_id", msg.BotID,
		"chars", len(msg.Text),
	)
	return nil
}
