package domain

import (
	"sort"
	"strings"
)

// RoleName identifies one of the fixed clinic roles.
type RoleName string

const (
	RoleAdmin        RoleName = "admin"
	RoleRecepcion    RoleName = "recepcion"
	RoleCaja         RoleName = "caja"
	RoleEspecialista RoleName = "especialista"
	RoleRadiologo    RoleName = "radiologo"
)

var registry = []RoleName{RoleAdmin, RoleRecepcion, RoleCaja, RoleEspecialista, RoleRadiologo}

// AllRoles returns every registered role in declaration order.
func AllRoles() []RoleName {
	out := make([]RoleName, len(registry))
	copy(out, registry)
	return out
}

// ParseRoleName resolves s against the registry. Matching is exact and
// case-sensitive.
func ParseRoleName(s string) (RoleName, bool) {
	for _, r := range registry {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Role is the persisted role record a User references.
type Role struct {
	ID   string   `json:"id"`
	Name RoleName `json:"name"`
}

// RoleSet is an immutable set of role names.
type RoleSet struct {
	m map[RoleName]struct{}
}

func NewRoleSet(roles ...RoleName) RoleSet {
	m := make(map[RoleName]struct{}, len(roles))
	for _, r := range roles {
		m[r] = struct{}{}
	}
	return RoleSet{m: m}
}

// AnyRole is the set of every registered role.
func AnyRole() RoleSet { return NewRoleSet(registry...) }

func (s RoleSet) Has(r RoleName) bool {
	_, ok := s.m[r]
	return ok
}

func (s RoleSet) Len() int { return len(s.m) }

// Names returns the members sorted alphabetically.
func (s RoleSet) Names() []string {
	out := make([]string, 0, len(s.m))
	for r := range s.m {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

func (s RoleSet) String() string { return strings.Join(s.Names(), ", ") }
