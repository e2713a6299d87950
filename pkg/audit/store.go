package audit

import (
	"context"
	"time"
)

// Store provides methods for querying and managing the audit trail.
type Store interface {
	// Search returns audit events matching the filter
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)

	// Get retrieves a specific audit event by ID, nil when absent
	Get(ctx context.Context, id int64) (*AuditEvent, error)

	// GetStats retrieves audit trail statistics
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*AuditStats, error)

	// Export serializes events matching the filter in the given format
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)

	// Cleanup removes audit events older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

var _ Store = (*DBLogger)(nil)
