package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/repository"
	"github.com/utafrali/pos-register/pkg/database"
)

const defaultListLimit = 100

// auditPayload is the JSONB body of an audit row: the parts of an entry that
// are not stored in their own columns.
type auditPayload struct {
	Item   *domain.LineItem    `json:"item,omitempty"`
	Items  []domain.LineItem   `json:"items,omitempty"`
	Totals *domain.AuditTotals `json:"totals,omitempty"`
}

// AuditRepository implements repository.AuditRepository using PostgreSQL.
type AuditRepository struct {
	db database.DBTX
}

// NewAuditRepository creates a new PostgreSQL-backed audit repository.
func NewAuditRepository(db database.DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

const insertAuditSQL = `
		INSERT INTO register_audit_log (
			id, terminal_id, action, actor_user_id, actor_role, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditEntry) (err error) {
	payload, err := json.Marshal(auditPayload{
		Item:   entry.Item,
		Items:  entry.Items,
		Totals: entry.Totals,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "InsertAudit", insertAuditSQL)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertAuditSQL,
		entry.ID,
		entry.TerminalID,
		entry.Action,
		entry.Actor.UserID,
		entry.Actor.Role,
		payload,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const listAuditSQL = `
		SELECT id, terminal_id, action, actor_user_id, actor_role, payload, created_at
		FROM register_audit_log
		WHERE ($1 = '' OR terminal_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

// List returns audit entries newest first.
func (r *AuditRepository) List(ctx context.Context, filter repository.AuditFilter) (_ []domain.AuditEntry, err error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	ctx, end := database.TraceQuery(ctx, "ListAudit", listAuditSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listAuditSQL, filter.TerminalID, filter.Action, limit, max(filter.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e         domain.AuditEntry
			payload   []byte
			createdAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.TerminalID, &e.Action, &e.Actor.UserID, &e.Actor.Role, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		var p auditPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload %s: %w", e.ID, err)
		}
		e.Item, e.Items, e.Totals = p.Item, p.Items, p.Totals
		e.Timestamp = createdAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
