// Package modalid derives the identifiers that correlate a host page with its modal.
package modalid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Auto is the id sentinel that asks for a generated, mount-scoped identifier.
// It is compared case-insensitively.
const Auto = "auto"

const prefix = "modal"

// ID is a modal session identifier of the form modal.<route>.<id>.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// Format composes an ID from a route and a resolved instance id.
func Format(route, id string) ID {
	return ID(fmt.Sprintf("%s.%s.%s", prefix, route, id))
}

// Parse splits an ID into its route and instance id. The instance id may
// itself contain dots; the route may not.
func Parse(id ID) (route, instance string, ok bool) {
	rest, found := strings.CutPrefix(string(id), prefix+".")
	if !found {
		return "", "", false
	}
	route, instance, found = strings.Cut(rest, ".")
	if !found || route == "" || instance == "" {
		return "", "", false
	}
	return route, instance, true
}

// IsAuto reports whether id is the auto sentinel.
func IsAuto(id string) bool {
	return strings.EqualFold(id, Auto)
}

// Allocator produces process-unique tokens.
type Allocator interface {
	Next() string
}

// UUIDAllocator allocates random UUIDs.
type UUIDAllocator struct{}

// Next returns a new UUID string.
func (UUIDAllocator) Next() string {
	return uuid.NewString()
}

// AllocatorFunc adapts a function to Allocator.
type AllocatorFunc func() string

// Next calls f.
func (f AllocatorFunc) Next() string { return f() }

type key struct {
	id    string
	route string
}

// Mount is the identity scope of one host or guest session. It draws at
// most one token from its allocator and memoizes every resolution, so the
// same inputs always yield the same ID for the lifetime of the mount.
type Mount struct {
	alloc Allocator

	once  sync.Once
	token string

	mu    sync.Mutex
	cache map[key]ID
}

// NewMount creates a mount scope. A nil allocator uses UUIDAllocator.
func NewMount(alloc Allocator) *Mount {
	if alloc == nil {
		alloc = UUIDAllocator{}
	}
	return &Mount{
		alloc: alloc,
		cache: make(map[key]ID),
	}
}

// Token returns the mount's generated identifier, allocating it on first use.
func (m *Mount) Token() string {
	m.once.Do(func() {
		m.token = m.alloc.Next()
	})
	return m.token
}

// Resolve returns modal.<route>.<id>, substituting the mount token when id
// is the auto sentinel. Case of an explicit id is preserved.
func (m *Mount) Resolve(id, route string) ID {
	k := key{id: id, route: route}

	m.mu.Lock()
	defer m.mu.Unlock()

	if resolved, ok := m.cache[k]; ok {
		return resolved
	}

	instance := id
	if IsAuto(id) {
		instance = m.Token()
	}
	resolved := Format(route, instance)
	m.cache[k] = resolved
	return resolved
}

// Resolve is a one-shot resolution in a fresh mount scope.
func Resolve(id, route string) ID {
	return NewMount(nil).Resolve(id, route)
}
