package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

const minPasswordLength = 8

// dummyHash is compared against when the username is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("clinic-system-dummy"), bcrypt.DefaultCost)
	return h
})

// AuthService implements the session issuer and account administration.
type AuthService struct {
	store   ports.CredentialStore
	tokens  *TokenManager
	revoker ports.SessionRevoker
	audit   ports.AuditSink
	log     zerolog.Logger
}

// NewAuthService wires the issuer. revoker and audit may be nil.
func NewAuthService(
	store ports.CredentialStore,
	tokens *TokenManager,
	revoker ports.SessionRevoker,
	audit ports.AuditSink,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{store: store, tokens: tokens, revoker: revoker, audit: audit, log: log}
}

// Login checks username/password against the credential store and issues a
// signed session. Unknown user and wrong password return the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	if username == "" || password == "" {
		s.record(domain.AuditEvent{Type: domain.AuditLoginFailed, Username: username, Detail: "empty credentials"})
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Err(err).Str("username", username).Msg("credential lookup failed")
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		s.record(domain.AuditEvent{Type: domain.AuditLoginFailed, Username: username})
		return nil, domain.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.record(domain.AuditEvent{Type: domain.AuditLoginFailed, Username: username, UserID: user.ID})
		return nil, domain.ErrInvalidCredentials
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.republish(ctx, user)

	s.log.Info().Str("username", user.Username).Str("role", string(user.Role.Name)).Msg("login succeeded")
	s.record(domain.AuditEvent{
		Type:     domain.AuditLoginSucceeded,
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role.Name,
	})
	return res, nil
}

// Logout revokes the token behind session for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return domain.ErrUnauthenticated
	}
	if s.revoker != nil && session.TokenID != "" {
		if err := s.revoker.RevokeToken(ctx, session.TokenID, session.ExpiresAt); err != nil {
			return err
		}
	}
	s.record(domain.AuditEvent{
		Type:     domain.AuditLogout,
		Username: session.Username,
		UserID:   session.UserID,
		Role:     session.Role.Name,
	})
	return nil
}

// Refresh re-reads the user from the credential store and issues a token
// carrying the current role snapshot. The previous token is revoked.
func (s *AuthService) Refresh(ctx context.Context, session *domain.Session) (*ports.LoginResult, error) {
	if session == nil {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.store.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	if user.SessionVersion > session.Version {
		s.republish(ctx, user)
		return nil, fmt.Errorf("%w: session was revoked", domain.ErrUnauthenticated)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if s.revoker != nil && session.TokenID != "" {
		if err := s.revoker.RevokeToken(ctx, session.TokenID, session.ExpiresAt); err != nil {
			return nil, err
		}
	}

	s.record(domain.AuditEvent{
		Type:     domain.AuditSessionRefreshed,
		Username: user.Username,
		UserID:   user.ID,
		Role:     user.Role.Name,
	})
	return res, nil
}

// CreateUser registers a new account. The role must exist in the store.
func (s *AuthService) CreateUser(ctx context.Context, actor *domain.Session, in ports.CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	name := strings.TrimSpace(in.Name)
	if username == "" || name == "" {
		return nil, fmt.Errorf("%w: username and name are required", domain.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	role, err := s.resolveRole(ctx, in.Role)
	if err != nil {
		return nil, err
	}

	var specialty *domain.Specialty
	if in.SpecialtyID != "" {
		specialty, err = s.store.FindSpecialty(ctx, in.SpecialtyID)
		if err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.store.Create(ctx, &domain.User{
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
		Role:         *role,
		Specialty:    specialty,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.record(domain.AuditEvent{
		Type:     domain.AuditUserCreated,
		Username: actorName(actor),
		UserID:   created.ID,
		Role:     created.Role.Name,
		Detail:   "created " + created.Username,
	})
	return created, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.store.List(ctx)
}

func (s *AuthService) ListSpecialties(ctx context.Context) ([]domain.Specialty, error) {
	return s.store.ListSpecialties(ctx)
}

// ChangeRole reassigns userID to role and invalidates the user's live
// sessions so the stale role snapshot stops being honoured.
func (s *AuthService) ChangeRole(ctx context.Context, actor *domain.Session, userID, roleName string) (*domain.User, error) {
	role, err := s.resolveRole(ctx, roleName)
	if err != nil {
		return nil, err
	}

	user, err := s.store.UpdateRole(ctx, userID, *role)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(role.Name)).Str("actor", actorName(actor)).Msg("role changed")
	s.record(domain.AuditEvent{
		Type:     domain.AuditRoleChanged,
		Username: actorName(actor),
		UserID:   user.ID,
		Role:     role.Name,
		Detail:   user.Username + " -> " + string(role.Name),
	})
	return user, nil
}

// ResetPassword stores a new password for userID and invalidates its sessions.
func (s *AuthService) ResetPassword(ctx context.Context, actor *domain.Session, userID, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.UpdatePassword(ctx, userID, string(hash))
	if err != nil {
		return err
	}
	if err := s.publish(ctx, user); err != nil {
		return err
	}

	s.record(domain.AuditEvent{
		Type:     domain.AuditPasswordReset,
		Username: actorName(actor),
		UserID:   user.ID,
		Detail:   user.Username,
	})
	return nil
}

func (s *AuthService) issue(user *domain.User) (*ports.LoginResult, error) {
	token, session, err := s.tokens.Issue(user.Session())
	if err != nil {
		return nil, err
	}
	return &ports.LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Session: session}, nil
}

func (s *AuthService) resolveRole(ctx context.Context, name string) (*domain.Role, error) {
	roleName, ok := domain.ParseRoleName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrRoleNotFound, name)
	}
	return s.store.FindRoleByName(ctx, roleName)
}

func (s *AuthService) publish(ctx context.Context, user *domain.User) error {
	if s.revoker == nil {
		return nil
	}
	if err := s.revoker.PublishVersion(ctx, user.ID, user.SessionVersion); err != nil {
		// The store change is already committed. The version is published
		// again on the user's next login or refresh.
		s.log.Error().Err(err).
			Str("user_id", user.ID).
			Int64("pending_version", user.SessionVersion).
			Msg("failed to publish session version, older sessions stay valid until republished")
		return err
	}
	return nil
}

// republish re-sends the stored session version so a publish that failed
// earlier still takes effect. Failures are logged only.
func (s *AuthService) republish(ctx context.Context, user *domain.User) {
	if s.revoker == nil || user.SessionVersion == 0 {
		return
	}
	if err := s.revoker.PublishVersion(ctx, user.ID, user.SessionVersion); err != nil {
		s.log.Warn().Err(err).
			Str("user_id", user.ID).
			Int64("pending_version", user.SessionVersion).
			Msg("session version republish failed")
	}
}

func (s *AuthService) record(ev domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.Enqueue(ev)
}

func actorName(actor *domain.Session) string {
	if actor == nil {
		return ""
	}
	return actor.Username
}
