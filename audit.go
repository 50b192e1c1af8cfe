package insurai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Auditor appends audit entries.
type Auditor interface {
	Append(ctx context.Context, entry AuditLogEntry) error
}

// AuditRecorder is the only writer of audit entries.
type AuditRecorder struct {
	store AuditStore
	now   Clock
}

// AuditOption customizes the recorder.
type AuditOption func(*AuditRecorder)

// WithAuditClock sets the clock used to stamp entries without a timestamp.
func WithAuditClock(clock Clock) AuditOption {
	return func(r *AuditRecorder) {
		if clock != nil {
			r.now = clock
		}
	}
}

func NewAuditRecorder(store AuditStore, opts ...AuditOption) *AuditRecorder {
	r := &AuditRecorder{store: store, now: normalizeClock(nil)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Append stores entry. Storage failures surface as ErrStorageUnavailable.
func (r *AuditRecorder) Append(ctx context.Context, entry AuditLogEntry) error {
	entry.ID = 0
	entry.ActorEmail = normalizeEmail(entry.ActorEmail)
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return validationError("audit action is required", goerrors.FieldError{Field: "action", Message: "required"})
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	entry.Timestamp = entry.Timestamp.UTC()

	if err := r.store.Append(ctx, &entry); err != nil {
		if HasTextCode(err, TextCodeStorageUnavailable) {
			return err
		}
		return wrapError(ErrStorageUnavailable, err, map[string]any{"action": entry.Action})
	}
	return nil
}

// Query returns matching entries in insertion order.
func (r *AuditRecorder) Query(ctx context.Context, filter AuditFilter) ([]*AuditLogEntry, error) {
	return r.store.Query(ctx, filter)
}

// AuditFunc adapts a function to the Auditor interface.
type AuditFunc func(ctx context.Context, entry AuditLogEntry) error

func (f AuditFunc) Append(ctx context.Context, entry AuditLogEntry) error {
	if f == nil {
		return nil
	}
	return f(ctx, entry)
}

type noopAuditor struct{}

func (noopAuditor) Append(context.Context, AuditLogEntry) error {
	return nil
}

func normalizeAuditor(a Auditor) Auditor {
	if a == nil {
		return noopAuditor{}
	}
	return a
}

// auditEntry builds an entry for a privileged action by actor.
func auditEntry(actor Identity, action, targetType string, targetID any, details map[string]any) AuditLogEntry {
	return AuditLogEntry{
		ActorEmail: actor.Subject,
		ActorRole:  actor.Role,
		Action:     action,
		TargetType: targetType,
		TargetID:   formatID(targetID),
		Details:    details,
	}
}

func formatID(id any) string {
	switch v := id.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
