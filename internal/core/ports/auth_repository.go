package ports

import (
	"context"
	"time"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// CredentialStore is the persistence boundary for users, roles and
// specialties. It exclusively owns that state.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// UpdateRole reassigns the user's role and bumps its session version,
	// returning the updated user.
	UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error)
	// UpdatePassword stores a new hash and bumps the session version.
	UpdatePassword(ctx context.Context, userID, passwordHash string) (*domain.User, error)

	FindRoleByName(ctx context.Context, name domain.RoleName) (*domain.Role, error)
	FindSpecialty(ctx context.Context, id string) (*domain.Specialty, error)
	ListSpecialties(ctx context.Context) ([]domain.Specialty, error)
}

// SessionRevoker tracks sessions that must no longer be honoured before
// their natural expiry.
type SessionRevoker interface {
	// PublishVersion records the minimum session version accepted for userID.
	PublishVersion(ctx context.Context, userID string, version int64) error
	// RevokeToken deny-lists a single token id until expiresAt.
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	// IsRevoked reports whether s has been invalidated.
	IsRevoked(ctx context.Context, s *domain.Session) (bool, error)
}
