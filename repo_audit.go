package insurai

import (
	"context"

	"github.com/uptrace/bun"
)

// AuditFilter narrows audit queries. Zero values match everything.
type AuditFilter struct {
	ActorEmail string
	TargetType string
	TargetID   string
	Action     string
	Limit      int
}

// AuditStore is append only. There is no update or delete surface.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditLogEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]*AuditLogEntry, error)
}

type auditLogs struct {
	db *bun.DB
}

var _ AuditStore = (*auditLogs)(nil)

func NewAuditRepository(db *bun.DB) AuditStore {
	return &auditLogs{db: db}
}

func (r *auditLogs) Append(ctx context.Context, entry *AuditLogEntry) error {
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return storageError(err, "audit.append")
	}
	return nil
}

// Query returns entries in insertion order.
func (r *auditLogs) Query(ctx context.Context, filter AuditFilter) ([]*AuditLogEntry, error) {
	records := []*AuditLogEntry{}
	q := r.db.NewSelect().Model(&records)
	if filter.ActorEmail != "" {
		q = q.Where("?TableAlias.actor_email = ?", normalizeEmail(filter.ActorEmail))
	}
	if filter.TargetType != "" {
		q = q.Where("?TableAlias.target_type = ?", filter.TargetType)
	}
	if filter.TargetID != "" {
		q = q.Where("?TableAlias.target_id = ?", filter.TargetID)
	}
	if filter.Action != "" {
		q = q.Where("?TableAlias.action = ?", filter.Action)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, storageError(err, "audit.query")
	}
	return records, nil
}
