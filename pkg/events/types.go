package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a bus event
type EventType string

const (
	EventLockRequested EventType = "lock.requested"
	EventLockGranted   EventType = "lock.granted"
	EventLockDenied    EventType = "lock.denied"
	EventLockReleased  EventType = "lock.released"
	EventLockExpired   EventType = "lock.expired"
	EventLockRevoked   EventType = "lock.revoked"

	EventRuleRegistered     EventType = "rule.registered"
	EventRuleRemoved        EventType = "rule.removed"
	EventPluginRegistered   EventType = "plugin.registered"
	EventPluginUnregistered EventType = "plugin.unregistered"
	EventPermissionsUpdated EventType = "permissions.updated"

	// TypeWildcard subscribes a handler to every event type.
	TypeWildcard EventType = "*"
)

// Event is one occurrence delivered to subscribers.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func newEvent(eventType EventType, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewLockRequested records that a lock request entered evaluation.
func NewLockRequested(path, owner, action string) Event {
	return newEvent(EventLockRequested, map[string]interface{}{
		"path":   path,
		"owner":  owner,
		"action": action,
	})
}

// NewLockGranted records a granted lock.
func NewLockGranted(lockID, path, owner, action, ruleID string, shared bool) Event {
	return newEvent(EventLockGranted, map[string]interface{}{
		"lock_id": lockID,
		"path":    path,
		"owner":   owner,
		"action":  action,
		"rule_id": ruleID,
		"shared":  shared,
	})
}

// NewLockDenied records a denied lock request with the deciding reason.
func NewLockDenied(path, owner, action, reason, ruleID string) Event {
	return newEvent(EventLockDenied, map[string]interface{}{
		"path":    path,
		"owner":   owner,
		"action":  action,
		"reason":  reason,
		"rule_id": ruleID,
	})
}

// NewLockReleased records a voluntary or administrative release.
func NewLockReleased(lockID, path, owner, releasedBy string) Event {
	return newEvent(EventLockReleased, map[string]interface{}{
		"lock_id":     lockID,
		"path":        path,
		"owner":       owner,
		"released_by": releasedBy,
	})
}

// NewLockExpired records a lock that passed its expiry time.
func NewLockExpired(lockID, path, owner string) Event {
	return newEvent(EventLockExpired, map[string]interface{}{
		"lock_id": lockID,
		"path":    path,
		"owner":   owner,
	})
}

// NewLockRevoked records an administrative revocation.
func NewLockRevoked(lockID, path, owner, revokedBy string) Event {
	return newEvent(EventLockRevoked, map[string]interface{}{
		"lock_id":    lockID,
		"path":       path,
		"owner":      owner,
		"revoked_by": revokedBy,
	})
}

// NewRuleRegistered records a rule joining the active set.
func NewRuleRegistered(ruleID string, priority int) Event {
	return newEvent(EventRuleRegistered, map[string]interface{}{
		"rule_id":  ruleID,
		"priority": priority,
	})
}

// NewRuleRemoved records a rule leaving the active set.
func NewRuleRemoved(ruleID string) Event {
	return newEvent(EventRuleRemoved, map[string]interface{}{
		"rule_id": ruleID,
	})
}

// NewPluginRegistered records an admitted plugin.
func NewPluginRegistered(pluginID, version string) Event {
	return newEvent(EventPluginRegistered, map[string]interface{}{
		"plugin_id": pluginID,
		"version":   version,
	})
}

// NewPluginUnregistered records a removed plugin.
func NewPluginUnregistered(pluginID string) Event {
	return newEvent(EventPluginUnregistered, map[string]interface{}{
		"plugin_id": pluginID,
	})
}

// NewPermissionsUpdated records a permission set replacement.
func NewPermissionsUpdated(user string, permissionCount int) Event {
	return newEvent(EventPermissionsUpdated, map[string]interface{}{
		"user":             user,
		"permission_count": permissionCount,
	})
}
