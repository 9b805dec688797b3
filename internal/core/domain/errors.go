package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrStoreUnavailable   = errors.New("store unavailable")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrRoleNotFound      = errors.New("role not found")
	ErrSpecialtyNotFound = errors.New("specialty not found")
	ErrInvalidInput      = errors.New("invalid input")

	ErrTagExists         = errors.New("tag already exists")
	ErrRoomNotFound      = errors.New("room not found")
	ErrInvalidTransition = errors.New("invalid room status transition")
)

// ForbiddenError is returned when a valid session lacks the role an operation
// requires. It unwraps to ErrForbidden.
type ForbiddenError struct {
	Route   Route
	Role    RoleName
	Allowed RoleSet
}

func (e *ForbiddenError) Error() string {
	names := e.Allowed.Names()
	switch len(names) {
	case 0:
		return "access forbidden: operation is not available to any role"
	case 1:
		return fmt.Sprintf("access forbidden: %s only", names[0])
	default:
		return fmt.Sprintf("access forbidden: requires one of %s", e.Allowed)
	}
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }
