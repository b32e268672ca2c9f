package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
)

// WebhookShipper posts ledger entries as JSON to an HTTP endpoint, either one
// per request or as a JSON array when batching is enabled.
type WebhookShipper struct {
	url           string
	headers       map[string]string
	timeout       time.Duration
	batchSize     int
	flushInterval time.Duration

	client    *http.Client
	batchCh   chan *models.AuditLog
	batch     []*models.AuditLog
	batchMu   sync.Mutex
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates a new webhook shipper
func NewWebhookShipper(cfg *config.AuditWebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	flushInterval := time.Duration(cfg.FlushInterval) * time.Second
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	ws := &WebhookShipper{
		url:           cfg.URL,
		headers:       cfg.Headers,
		timeout:       timeout,
		batchSize:     cfg.BatchSize,
		flushInterval: flushInterval,
		client:        &http.Client{Timeout: timeout},
		batchCh:       make(chan *models.AuditLog, 1000),
		batch:         make([]*models.AuditLog, 0),
		closeCh:       make(chan struct{}),
		done:          make(chan struct{}),
	}

	if ws.batchSize > 0 {
		go ws.processBatches()
	} else {
		close(ws.done)
	}

	return ws, nil
}

// processBatches collects queued entries and flushes on size, interval or close
func (ws *WebhookShipper) processBatches() {
	defer close(ws.done)

	ticker := time.NewTicker(ws.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.batchSize {
				ws.flushBatch()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			ws.flushBatch()
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
		drain:
			for {
				select {
				case entry := <-ws.batchCh:
					ws.batch = append(ws.batch, entry)
				default:
					break drain
				}
			}
			ws.flushBatch()
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushBatch sends the current batch; callers hold batchMu
func (ws *WebhookShipper) flushBatch() {
	if len(ws.batch) == 0 {
		return
	}

	data, err := json.Marshal(ws.batch)
	if err != nil {
		slog.Error("failed to marshal ledger batch", "error", err)
		ws.batch = ws.batch[:0]
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.timeout)
	defer cancel()

	if err := ws.sendRequest(ctx, data); err != nil {
		slog.Error("failed to send ledger batch", "url", ws.url, "entries", len(ws.batch), "error", err)
	}

	ws.batch = ws.batch[:0]
}

// Ship sends an entry to the webhook
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	if ws.batchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
			// Queue full, send directly
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	return ws.sendRequest(ctx, data)
}

func (ws *WebhookShipper) sendRequest(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close flushes pending batched entries and stops the batch processor
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() {
		close(ws.closeCh)
	})
	<-ws.done
	return nil
}
