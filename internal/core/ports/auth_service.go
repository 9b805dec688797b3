package ports

import (
	"context"
	"time"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// LoginResult is what the session issuer hands back on success.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   domain.Session
}

// CreateUserInput carries the fields an admin supplies for a new account.
type CreateUserInput struct {
	Username    string
	Password    string
	Name        string
	Role        string
	SpecialtyID string
}

// AuthService issues and revokes sessions and administers accounts.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context, session *domain.Session) error
	Refresh(ctx context.Context, session *domain.Session) (*LoginResult, error)

	CreateUser(ctx context.Context, actor *domain.Session, in CreateUserInput) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	ChangeRole(ctx context.Context, actor *domain.Session, userID, role string) (*domain.User, error)
	ResetPassword(ctx context.Context, actor *domain.Session, userID, password string) error
	ListSpecialties(ctx context.Context) ([]domain.Specialty, error)
}

// SessionVerifier decodes a raw token into a session snapshot.
type SessionVerifier interface {
	Verify(token string) (*domain.Session, error)
}
