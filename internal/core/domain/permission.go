package domain

import "sync"

// Decision is the outcome of an operation-level authorization check.
type Decision int

const (
	Forbidden Decision = iota
	Permitted
)

func (d Decision) String() string {
	if d == Permitted {
		return "permitted"
	}
	return "forbidden"
}

// Authorize returns Permitted iff s is present and its role belongs to
// allowed. A nil session is always Forbidden.
func Authorize(allowed RoleSet, s *Session) Decision {
	if s == nil {
		return Forbidden
	}
	if allowed.Has(s.Role.Name) {
		return Permitted
	}
	return Forbidden
}

// Route identifies an operation by HTTP method and route pattern.
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string { return r.Method + " " + r.Path }

// PermissionTable maps routes to their allowed role sets. Reads and writes
// are safe for concurrent use; callers must look up on every request.
type PermissionTable struct {
	mu    sync.RWMutex
	rules map[Route]RoleSet
}

func NewPermissionTable() *PermissionTable {
	return &PermissionTable{rules: make(map[Route]RoleSet)}
}

// Set replaces the allowed roles for method+path.
func (t *PermissionTable) Set(method, path string, roles ...RoleName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[Route{Method: method, Path: path}] = NewRoleSet(roles...)
}

// Allowed returns the role set configured for route.
func (t *PermissionTable) Allowed(route Route) (RoleSet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	set, ok := t.rules[route]
	return set, ok
}

// Routes returns every configured route.
func (t *PermissionTable) Routes() []Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Route, 0, len(t.rules))
	for r := range t.rules {
		out = append(out, r)
	}
	return out
}
