package ports

import (
	"context"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// AuditRepository persists the authentication audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	Latest(ctx context.Context, limit int) ([]*domain.AuditEvent, error)
}

// AuditService records and reads audit events.
type AuditService interface {
	Record(ctx context.Context, event domain.AuditEvent) error
	Latest(ctx context.Context, limit int) ([]*domain.AuditEvent, error)
}

// AuditSink accepts events for asynchronous recording. Enqueue never blocks.
type AuditSink interface {
	Enqueue(event domain.AuditEvent)
}
