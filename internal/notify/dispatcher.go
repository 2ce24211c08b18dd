package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/marchelocal/marketplace/internal/events"
)

const (
	Topic        = "notification_events"
	defaultBatch = 100
)

// Dispatcher drains unsent notification rows to kafka on a ticker. A failed
// publish leaves the row unsent, so it is retried on the next tick; delivery
// is at-least-once and never blocks the operation that produced the row.
type Dispatcher struct {
	Outbox    *Outbox
	Publisher events.Publisher
	Interval  time.Duration
	Batch     int
	Log       *slog.Logger
}

func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				d.Log.Error("outbox drain failed", "err", err)
			}
		}
	}
}

// Drain publishes one batch of unsent rows and marks them sent.
func (d *Dispatcher) Drain(ctx context.Context) error {
	batch := d.Batch
	if batch <= 0 {
		batch = defaultBatch
	}

	rows, err := d.Outbox.FetchUnsent(ctx, batch)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := d.Publisher.PublishEvent(ctx, Topic, row.UserID.String(), row); err != nil {
			d.Log.Error("notification publish failed", "notification_id", row.ID, "err", err)
			continue
		}
		if err := d.Outbox.MarkSent(ctx, row.ID); err != nil {
			// Row stays unsent and will be published again next tick;
			// consumers must tolerate duplicates.
			d.Log.Error("mark sent failed", "notification_id", row.ID, "err", err)
		}
	}
	return nil
}
