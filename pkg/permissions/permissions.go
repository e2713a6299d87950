// Package permissions holds per-user permission sets consulted during
// rule evaluation and release-override checks.
//
// Permissions are opaque strings. By convention they follow the
// "resource:action" form (e.g. "locks:release-any", "admin"), but the
// store does not interpret them. A user that was never granted anything
// has the empty set; there is no implicit trust.
package permissions

import (
	"sort"
	"sync"
)

// ReleaseAny is the administrative permission that allows releasing
// locks owned by other users.
const ReleaseAny = "locks:release-any"

// Set is an unordered collection of permission strings.
type Set map[string]struct{}

// NewSet creates a set from the given permissions.
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Has reports whether the permission is in the set.
func (s Set) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// List returns the permissions in sorted order.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Store maps users to their permission sets. It follows single-writer/
// multiple-reader discipline: Replace swaps a user's whole set; readers
// always see either the old set or the new one, never a partial update.
type Store struct {
	mu    sync.RWMutex
	users map[string]Set
}

// NewStore creates an empty permission store.
func NewStore() *Store {
	return &Store{
		users: make(map[string]Set),
	}
}

// Get returns a copy of the user's permission set. Unknown users get an
// empty set.
func (s *Store) Get(user string) Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perms, ok := s.users[user]
	if !ok {
		return Set{}
	}
	return perms.Clone()
}

// Has reports whether the user holds the permission.
func (s *Store) Has(user, perm string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perms, ok := s.users[user]
	if !ok {
		return false
	}
	return perms.Has(perm)
}

// Replace swaps the user's permission set wholesale. An empty or nil set
// removes the user from the store.
func (s *Store) Replace(user string, perms Set) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(perms) == 0 {
		delete(s.users, user)
		return
	}
	s.users[user] = perms.Clone()
}

// Remove deletes the user's permission set.
func (s *Store) Remove(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, user)
}

// Users returns the users with at least one permission, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of users with at least one permission.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}
