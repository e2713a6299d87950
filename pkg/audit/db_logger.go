package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBLogger persists audit events to a SQLite database. The connection
// is owned by the caller and may be shared with other subsystems.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}

	return logger, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		status TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		lock_id TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		rule_id TEXT NOT NULL DEFAULT '',
		plugin_id TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		metadata TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_username ON audit_events(username);
	CREATE INDEX IF NOT EXISTS idx_audit_events_path ON audit_events(path);
	CREATE INDEX IF NOT EXISTS idx_audit_events_status ON audit_events(status);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log inserts an audit event and stamps its assigned ID.
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadataJSON []byte
	if len(event.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status,
			username, lock_id, path, action,
			rule_id, plugin_id, reason,
			request_id, message, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := l.db.ExecContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.User, event.LockID, event.Path, event.Action,
		event.RuleID, event.PluginID, event.Reason,
		event.RequestID, event.Message, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read audit event id: %w", err)
	}
	event.ID = id

	return nil
}

// sortColumns whitelists the fields Search accepts in SortBy. Sorting
// interpolates a column name, so only mapped values reach the query.
var sortColumns = map[string]string{
	"timestamp":  "timestamp",
	"event_type": "event_type",
	"user":       "username",
	"path":       "path",
	"status":     "status",
}

// Search returns audit events matching the filter, newest first unless
// the filter sorts otherwise.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	query := `
		SELECT
			id, timestamp, event_type, status,
			username, lock_id, path, action,
			rule_id, plugin_id, reason,
			request_id, message, metadata
		FROM audit_events
		WHERE 1=1
	`

	args := []interface{}{}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.EndTime)
	}

	if filter.User != "" {
		query += " AND username = ?"
		args = append(args, filter.User)
	}

	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = "?"
			args = append(args, string(et))
		}
		query += fmt.Sprintf(" AND event_type IN (%s)", strings.Join(placeholders, ", "))
	}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}

	if filter.Path != "" {
		query += " AND path LIKE ?"
		args = append(args, filter.Path+"%")
	}

	if filter.LockID != "" {
		query += " AND lock_id = ?"
		args = append(args, filter.LockID)
	}

	if filter.RuleID != "" {
		query += " AND rule_id = ?"
		args = append(args, filter.RuleID)
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "timestamp"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", column, order)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += " LIMIT -1"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		event := &AuditEvent{}

		var metadataJSON []byte

		err := rows.Scan(
			&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&event.User, &event.LockID, &event.Path, &event.Action,
			&event.RuleID, &event.PluginID, &event.Reason,
			&event.RequestID, &event.Message, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		if len(metadataJSON) > 0 {
			event.Metadata = make(map[string]interface{})
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

// Get retrieves a single audit event by ID, nil when absent.
func (l *DBLogger) Get(ctx context.Context, id int64) (*AuditEvent, error) {
	query := `
		SELECT
			id, timestamp, event_type, status,
			username, lock_id, path, action,
			rule_id, plugin_id, reason,
			request_id, message, metadata
		FROM audit_events
		WHERE id = ?
	`

	event := &AuditEvent{}

	var metadataJSON []byte

	err := l.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.Timestamp, &event.EventType, &event.Status,
		&event.User, &event.LockID, &event.Path, &event.Action,
		&event.RuleID, &event.PluginID, &event.Reason,
		&event.RequestID, &event.Message, &metadataJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit event %d: %w", id, err)
	}

	if len(metadataJSON) > 0 {
		event.Metadata = make(map[string]interface{})
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return event, nil
}

// Export serializes events matching the filter in the given format.
func (l *DBLogger) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	events, err := l.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	return Export(events, format)
}

// GetStats retrieves audit log statistics for the optional time range.
func (l *DBLogger) GetStats(ctx context.Context, startTime, endTime *time.Time) (*AuditStats, error) {
	stats := &AuditStats{
		EventsByType:   make(map[EventType]int64),
		EventsByStatus: make(map[EventStatus]int64),
		EventsByUser:   make(map[string]int64),
	}

	whereClause := "WHERE 1=1"
	args := []interface{}{}

	if startTime != nil {
		whereClause += " AND timestamp >= ?"
		args = append(args, *startTime)
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.Start = *startTime
	}

	if endTime != nil {
		whereClause += " AND timestamp <= ?"
		args = append(args, *endTime)
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.End = *endTime
	}

	err := l.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM audit_events %s", whereClause), args...).
		Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to get total events: %w", err)
	}

	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf("SELECT event_type, COUNT(*) FROM audit_events %s GROUP BY event_type", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType EventType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats.EventsByType[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = l.db.QueryContext(ctx,
		fmt.Sprintf("SELECT status, COUNT(*) FROM audit_events %s GROUP BY status", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status EventStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.EventsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = l.db.QueryContext(ctx,
		fmt.Sprintf("SELECT username, COUNT(*) FROM audit_events %s AND username != '' GROUP BY username", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by user: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user string
		var count int64
		if err := rows.Scan(&user, &count); err != nil {
			return nil, err
		}
		stats.EventsByUser[user] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = l.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT username) FROM audit_events %s AND username != ''", whereClause), args...).
		Scan(&stats.UniqueUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique users: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(DISTINCT path) FROM audit_events %s AND path != ''", whereClause), args...).
		Scan(&stats.UniquePaths)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique paths: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM audit_events %s AND status = 'denied'", whereClause), args...).
		Scan(&stats.Denials)
	if err != nil {
		return nil, fmt.Errorf("failed to get denials: %w", err)
	}

	return stats, nil
}

// Cleanup removes audit events older than the retention period and
// returns the number of rows deleted.
func (l *DBLogger) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -policy.RetentionDays)

	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit events: %w", err)
	}

	return result.RowsAffected()
}

// Close is a no-op: the database connection is shared and owned by the
// caller.
func (l *DBLogger) Close() error {
	return nil
}
