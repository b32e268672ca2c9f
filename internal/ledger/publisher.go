package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/castline/castline/internal/audit"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/safego"
)

// Publisher forwards committed entries to an audit.Shipper in the background.
// A nil Publisher or one without a shipper discards entries.
type Publisher struct {
	shipper audit.Shipper
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewPublisher creates a Publisher; timeout bounds each Ship call.
func NewPublisher(shipper audit.Shipper, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{shipper: shipper, timeout: timeout}
}

// Publish ships a copy of entry asynchronously. It must only be called after the
// entry's transaction committed.
func (p *Publisher) Publish(entry *models.AuditLog) {
	if p == nil || p.shipper == nil || entry == nil {
		return
	}
	e := *entry
	safego.GoTracked(&p.wg, "ledger-publish", func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.shipper.Ship(ctx, &e); err != nil {
			slog.Warn("failed to ship ledger entry", "audit_log_id", e.ID, "action_type", e.ActionType, "error", err)
		}
	})
}

// Close waits for in-flight publishes and closes the shipper.
func (p *Publisher) Close() error {
	if p == nil || p.shipper == nil {
		return nil
	}
	p.wg.Wait()
	return p.shipper.Close()
}
