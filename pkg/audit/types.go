package audit

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Lock lifecycle events
	EventTypeLockRequested EventType = "lock.requested"
	EventTypeLockGranted   EventType = "lock.granted"
	EventTypeLockDenied    EventType = "lock.denied"
	EventTypeLockReleased  EventType = "lock.released"
	EventTypeLockExpired   EventType = "lock.expired"
	EventTypeLockRevoked   EventType = "lock.revoked"

	// Policy administration events
	EventTypeRuleRegistered     EventType = "rule.registered"
	EventTypeRuleRemoved        EventType = "rule.removed"
	EventTypePluginRegistered   EventType = "plugin.registered"
	EventTypePluginUnregistered EventType = "plugin.unregistered"
	EventTypePermissionsUpdated EventType = "permissions.updated"
)

// IsLockEvent reports whether the type belongs to the lock lifecycle.
func (t EventType) IsLockEvent() bool {
	return strings.HasPrefix(string(t), "lock.")
}

// IsPolicyEvent reports whether the type records a policy mutation.
func (t EventType) IsPolicyEvent() bool {
	s := string(t)
	return strings.HasPrefix(s, "rule.") ||
		strings.HasPrefix(s, "plugin.") ||
		strings.HasPrefix(s, "permissions.")
}

// EventStatus represents the outcome of the audited action
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusDenied  EventStatus = "denied"
	EventStatusFailure EventStatus = "failure"
)

// StatusOf maps an event type to its audit status. Denials are the
// only event type recording a refused action; everything else on the
// bus already happened.
func StatusOf(eventType EventType) EventStatus {
	if eventType == EventTypeLockDenied {
		return EventStatusDenied
	}
	return EventStatusSuccess
}

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// User is the principal behind the event: the requesting owner for
	// lock lifecycle entries, the releasing or revoking user for those,
	// the target user for permission updates.
	User string `json:"user,omitempty"`

	// Lock context
	LockID string `json:"lock_id,omitempty"`
	Path   string `json:"path,omitempty"`
	Action string `json:"action,omitempty"`

	// Policy context
	RuleID   string `json:"rule_id,omitempty"`
	PluginID string `json:"plugin_id,omitempty"`

	// Reason carries the deciding rule's reason or the conflict
	// description for denials.
	Reason string `json:"reason,omitempty"`

	RequestID string                 `json:"request_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an audit event stamped with the current time.
func NewEvent(eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Principal filter
	User string

	// Event filters
	EventTypes []EventType
	Status     *EventStatus

	// Lock and policy filters. Path matches by prefix.
	Path   string
	LockID string
	RuleID string

	// Pagination
	Limit  int
	Offset int

	// Sorting; SortBy must be one of timestamp, event_type, user,
	// path, status. Unknown fields fall back to timestamp.
	SortBy    string
	SortOrder string // "asc" or "desc"
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// AuditStats represents statistics about audit logs
type AuditStats struct {
	TotalEvents    int64                 `json:"total_events"`
	EventsByType   map[EventType]int64   `json:"events_by_type"`
	EventsByStatus map[EventStatus]int64 `json:"events_by_status"`
	EventsByUser   map[string]int64      `json:"events_by_user"`
	UniqueUsers    int64                 `json:"unique_users"`
	UniquePaths    int64                 `json:"unique_paths"`
	Denials        int64                 `json:"denials"`
	TimeRange      *TimeRange            `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long audit logs should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit logs
	RetentionDays int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
