// Package audit ships committed ledger entries to external destinations. The
// database ledger is the system of record; shippers hold copies for SIEM
// ingestion and long-term archive, so a shipping failure is logged and never
// reaches the request that produced the entry. Multiple destinations (file,
// webhook, s3) run side by side behind the Shipper interface.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
)

// Shipper defines the interface for ledger entry shipping
type Shipper interface {
	// Ship sends a committed ledger entry to the destination
	Ship(ctx context.Context, entry *models.AuditLog) error
	// Close flushes buffered entries and releases resources
	Close() error
}

// MultiShipper ships to multiple destinations
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper creates a multi-shipper from the enabled configs
func NewMultiShipper(ctx context.Context, configs []config.AuditShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{
		shippers: make([]Shipper, 0),
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var shipper Shipper
		var err error

		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			shipper, err = NewFileShipper(cfg.File)
		case "s3":
			if cfg.S3 == nil {
				return nil, fmt.Errorf("s3 config is required for s3 shipper")
			}
			shipper, err = NewS3Shipper(ctx, cfg.S3)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}

		if err != nil {
			ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}

		ms.shippers = append(ms.shippers, shipper)
	}

	return ms, nil
}

// NewMultiShipperFrom wraps already constructed shippers.
func NewMultiShipperFrom(shippers ...Shipper) *MultiShipper {
	return &MultiShipper{shippers: shippers}
}

// Len returns the number of active shippers.
func (ms *MultiShipper) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.shippers)
}

// Ship sends an entry to all configured shippers. Every shipper is attempted;
// the last error is returned.
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Error("audit shipper error", "audit_log_id", entry.ID, "error", err)
		}
	}
	return lastErr
}

// Close closes all shippers
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, shipper := range ms.shippers {
		if err := shipper.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
