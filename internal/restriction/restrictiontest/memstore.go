// Package restrictiontest provides an in-memory account store for tests of code
// built on the restriction engine.
package restrictiontest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
)

// MemStore implements restriction.AccountStore with the same version check as the
// SQL repository. It is safe for concurrent use.
type MemStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	entries  []*models.AuditLog
	// Err, when set, is returned by every call.
	Err error
}

// NewMemStore seeds a store. Accounts with Version 0 start at 1.
func NewMemStore(accounts ...*models.Account) *MemStore {
	s := &MemStore{accounts: make(map[string]*models.Account)}
	for _, a := range accounts {
		s.Put(a)
	}
	return s
}

// Put stores a copy of a.
func (s *MemStore) Put(a *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := a.Clone()
	if c.Version == 0 {
		c.Version = 1
	}
	s.accounts[c.ID] = c
}

// GetAccount returns a copy of the stored account, or nil when absent.
func (s *MemStore) GetAccount(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return a.Clone(), nil
}

// ApplyMutation stores account and appends entry when the version matches.
func (s *MemStore) ApplyMutation(_ context.Context, account *models.Account, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.accounts[account.ID]
	if !ok || stored.Version != account.Version {
		return apperr.Conflict("account %s was modified concurrently; reload and retry", account.ID)
	}
	if entry != nil {
		entry.ID = fmt.Sprintf("log-%d", len(s.entries)+1)
		entry.CreatedAt = time.Now().UTC()
		e := *entry
		s.entries = append(s.entries, &e)
	}
	account.Version++
	s.accounts[account.ID] = account.Clone()
	return nil
}

// ListExpiredRestrictions mirrors the repository query.
func (s *MemStore) ListExpiredRestrictions(_ context.Context, now time.Time, limit int) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*models.Account, 0)
	for _, a := range s.accounts {
		if a.RestrictionExpired(now) && len(out) < limit {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

// Account returns a copy of the stored account, or nil.
func (s *MemStore) Account(id string) *models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a.Clone()
	}
	return nil
}

// Entries returns the committed ledger entries in commit order.
func (s *MemStore) Entries() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.AuditLog(nil), s.entries...)
}
