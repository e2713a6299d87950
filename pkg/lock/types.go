package lock

import (
	"time"
)

// Status represents a lock's lifecycle state
type Status string

const (
	// StatusRequested is the initial state before admission.
	StatusRequested Status = "requested"
	// StatusHeld means the lock is active on its path.
	StatusHeld Status = "held"
	// StatusReleased means the owner (or an administrator) released it.
	StatusReleased Status = "released"
	// StatusExpired means the expiry timestamp passed.
	StatusExpired Status = "expired"
	// StatusRevoked means an administrator forcibly ended it.
	StatusRevoked Status = "revoked"
	// StatusDenied means the request was refused and never held.
	StatusDenied Status = "denied"
)

func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status ends the lock's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusExpired, StatusRevoked, StatusDenied:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition is legal. Transitions
// are monotonic: no status ever returns to requested, and terminal
// statuses never change.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusRequested:
		return next == StatusHeld || next == StatusDenied
	case StatusHeld:
		return next == StatusReleased || next == StatusExpired || next == StatusRevoked
	}
	return false
}

// Lock is one admission outcome: a held lease on a path, or the
// denied record of a refused request.
type Lock struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Owner   string    `json:"owner"`
	Action  string    `json:"action"`
	Status  Status    `json:"status"`
	Created time.Time `json:"created"`

	// AcquiredAt is set when the lock becomes held.
	AcquiredAt time.Time `json:"acquired_at,omitempty"`

	// ExpiresAt is the lease deadline; nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// CompletedAt is set when the lock reaches a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// Reason is the deciding rule's reason, or the conflict
	// description for a denied request.
	Reason string `json:"reason,omitempty"`

	// RuleID identifies the rule that decided the request, when one did.
	RuleID string `json:"rule_id,omitempty"`

	// Shared marks a lock granted under a shareable rule; multiple
	// shared locks may be held on one path at once.
	Shared bool `json:"shared"`
}

// Active reports whether the lock currently occupies its path.
func (l *Lock) Active() bool {
	return l.Status == StatusHeld
}

// clone returns a deep copy safe to hand to callers.
func (l *Lock) clone() *Lock {
	out := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		out.ExpiresAt = &t
	}
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		out.CompletedAt = &t
	}
	if l.Metadata != nil {
		out.Metadata = make(map[string]string, len(l.Metadata))
		for k, v := range l.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Request describes one lock acquisition attempt.
type Request struct {
	Path   string `json:"path"`
	Owner  string `json:"owner"`
	Action string `json:"action"`

	// TTL is the requested lease duration; zero uses the table
	// default, negative is rejected.
	TTL time.Duration `json:"ttl,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Config holds lock table configuration
type Config struct {
	// DefaultTTL applies when a request carries no TTL; zero means
	// locks live until released.
	DefaultTTL time.Duration

	// MaxTTL caps requested TTLs; zero means uncapped.
	MaxTTL time.Duration

	// Retention is how long terminal locks stay queryable before
	// purge removes them.
	Retention time.Duration
}

// DefaultConfig returns default lock table configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultTTL: 0,
		MaxTTL:     0,
		Retention:  time.Hour,
	}
}

// Stats is a point-in-time summary of table contents.
type Stats struct {
	Held     int
	Retained int
	Paths    int
}
