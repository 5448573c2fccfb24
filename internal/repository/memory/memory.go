// Package memory provides in-process stores used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/repository"
)

// HeldOrderStore keeps held orders in a map. Values are copied in and out so
// callers never share slices with the store.
type HeldOrderStore struct {
	mu   sync.RWMutex
	data map[string][]domain.HeldOrder
}

// NewHeldOrderStore creates an empty store.
func NewHeldOrderStore() *HeldOrderStore {
	return &HeldOrderStore{data: make(map[string][]domain.HeldOrder)}
}

// Load returns a copy of the terminal's held orders.
func (s *HeldOrderStore) Load(_ context.Context, terminalID string) ([]domain.HeldOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHeld(s.data[terminalID]), nil
}

// Save replaces the terminal's held orders.
func (s *HeldOrderStore) Save(_ context.Context, terminalID string, held []domain.HeldOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[terminalID] = copyHeld(held)
	return nil
}

func copyHeld(held []domain.HeldOrder) []domain.HeldOrder {
	out := make([]domain.HeldOrder, len(held))
	for i, h := range held {
		h.Cart = h.Cart.Clone()
		out[i] = h
	}
	return out
}

// AuditRepository keeps audit entries in a slice.
type AuditRepository struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewAuditRepository creates an empty audit repository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Create appends entry.
func (r *AuditRepository) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// List returns matching entries newest first.
func (r *AuditRepository) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AuditEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if filter.TerminalID != "" && e.TerminalID != filter.TerminalID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.AuditEntry{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var (
	_ repository.HeldOrderStore  = (*HeldOrderStore)(nil)
	_ repository.AuditRepository = (*AuditRepository)(nil)
)
