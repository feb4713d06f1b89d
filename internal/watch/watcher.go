// Package watch periodically alerts the research assistant about
// support requests that have been waiting too long.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antoniostano/chia/internal/notify"
	"github.com/antoniostano/chia/internal/storage"
)

// Watcher sweeps the support-request table and notifies the research
// assistant about requests that sat unanswered past the inactivity
// window. Records are append-only: a handled request is marked by a
// superseding row rather than an update.
type Watcher struct {
	store      storage.Store
	notifier   notify.Notifier
	interval   time.Duration
	inactivity time.Duration
	log        *slog.Logger
}

func New(store storage.Store, notifier notify.Notifier, interval, inactivity time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if inactivity <= 0 {
		inactivity = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		store:      store,
		notifier:   notifier,
		interval:   interval,
		inactivity: inactivity,
		log:        log,
	}
}

// Start runs the sweep loop until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()
}

// Sweep notifies on every pending request older than the inactivity
// window. Exported so a shutdown path can run one final pass.
func (w *Watcher) Sweep(ctx context.Context) {
	recs, err := w.store.Query(ctx, storage.TableSupportRequests, storage.Filter{})
	if err != nil {
		w.log.Warn("support sweep query failed", "error", err)
		return
	}

	handled := make(map[string]bool)
	for _, rec := range recs {
		if superseded, ok := rec.Fields["supersedes"].(string); ok {
			handled[superseded] = true
		}
	}

	now := time.Now().UTC()
	for _, rec := range recs {
		if notified, _ := rec.Fields["notified"].(bool); notified {
			continue
		}
		if handled[rec.ID] {
			continue
		}
		if now.Sub(rec.CreatedAt) < w.inactivity {
			continue
		}
		w.dispatch(ctx, rec)
	}
}

func (w *Watcher) dispatch(ctx context.Context, rec storage.Record) {
	subject := "Support request awaiting follow-up"
	body := fmt.Sprintf(
		"A client asked for support and has not been contacted yet.\n\n"+
			"Chat: %s\nRequested: %s\nSupport type: %v\nContact (%v): %v\n",
		rec.ChatID,
		rec.CreatedAt.Format(time.RFC3339),
		rec.Fields["support_type"],
		rec.Fields["contact_method"],
		rec.Fields["contact"],
	)

	if err := w.notifier.Notify(ctx, subject, body); err != nil {
		w.log.Warn("support notification failed", "chat_id", rec.ChatID, "error", err)
		return
	}

	err := w.store.Insert(ctx, storage.TableSupportRequests, storage.Record{
		ChatID: rec.ChatID,
		Fields: map[string]any{
			"supersedes": rec.ID,
			"notified":   true,
		},
	})
	if err != nil {
		w.log.Warn("failed to mark support request notified", "chat_id", rec.ChatID, "error", err)
	}
}
