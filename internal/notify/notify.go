package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Notifier delivers out-of-band alerts to the research assistant.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Config selects the delivery channel.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	ToAddress    string
}

// New returns an SMTP notifier when a host is configured, otherwise a
// log-only notifier so alerts are still visible in development.
func New(cfg Config, log *slog.Logger) Notifier {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return NewLogNotifier(log)
	}
	return NewSMTPNotifier(cfg)
}

// LogNotifier writes alerts to the structured log instead of sending
// them anywhere.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, subject, body string) error {
	n.log.Info("notification", "subject", subject, "body", body)
	return nil
}
