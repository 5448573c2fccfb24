package repository

import (
	"context"

	"github.com/utafrali/pos-register/internal/domain"
)

// HeldOrderStore persists the held orders of each terminal.
type HeldOrderStore interface {
	// Load returns the held orders of a terminal. A terminal that never saved
	// anything has no held orders and no error.
	Load(ctx context.Context, terminalID string) ([]domain.HeldOrder, error)

	// Save replaces the full held-order list of a terminal.
	Save(ctx context.Context, terminalID string, held []domain.HeldOrder) error
}

// AuditFilter narrows an audit listing.
type AuditFilter struct {
	TerminalID string
	Action     string
	Limit      int
	Offset     int
}

// AuditRepository stores the void audit trail.
type AuditRepository interface {
	// Create records one audit entry.
	Create(ctx context.Context, entry *domain.AuditEntry) error

	// List returns entries newest first.
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}
