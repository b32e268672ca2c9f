package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
)

// FileShipper appends ledger entries as JSON lines to a local file with
// size-based rotation.
type FileShipper struct {
	cfg  *config.AuditFileConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileShipper creates a new file shipper
func NewFileShipper(cfg *config.AuditFileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	return &FileShipper{
		cfg:  cfg,
		file: file,
	}, nil
}

// Ship writes an entry to the file
func (fs *FileShipper) Ship(_ context.Context, entry *models.AuditLog) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Error("failed to rotate ledger file", "path", fs.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}

	return nil
}

// rotate renames path to path.1 (shifting older backups) and reopens path
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}

	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i)
		newPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")

	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	fs.file = file
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
