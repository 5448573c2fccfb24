package register

import "github.com/utafrali/pos-register/internal/domain"

// Effect is a side effect the caller must carry out after a reduction.
type Effect interface {
	isEffect()
}

// PersistHeld asks for the full held-order list to be written to durable
// storage. The new state must not be committed if this fails.
type PersistHeld struct {
	Held []domain.HeldOrder
}

// Audit asks for an audit entry to be recorded. Failures must not undo the
// mutation that produced it.
type Audit struct {
	Entry domain.AuditEntry
}

func (PersistHeld) isEffect() {}
func (Audit) isEffect()       {}
