package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

const defaultIssuer = "clinic-system"

type refClaim struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// sessionClaims is the wire form of domain.Session.
type sessionClaims struct {
	UserID    string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      refClaim  `json:"role"`
	Specialty *refClaim `json:"specialty,omitempty"`
	Version   int64     `json:"ver"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, issuer: defaultIssuer, now: time.Now}
}

// TTL returns the lifetime given to newly issued tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a new token for s. Each call yields a fresh token id; the
// returned session carries the id and the (second-truncated) timestamps.
func (m *TokenManager) Issue(s domain.Session) (string, domain.Session, error) {
	now := m.now().UTC().Truncate(time.Second)
	s.TokenID = uuid.NewString()
	s.IssuedAt = now
	s.ExpiresAt = now.Add(m.ttl)

	claims := sessionClaims{
		UserID:   s.UserID,
		Username: s.Username,
		Name:     s.Name,
		Role:     refClaim{ID: s.Role.ID, Name: string(s.Role.Name)},
		Version:  s.Version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   s.UserID,
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	if s.Specialty != nil {
		claims.Specialty = &refClaim{ID: s.Specialty.ID, Name: s.Specialty.Name}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, s, nil
}

// Verify decodes raw and returns the session it carries. Every failure
// (malformed, bad signature, expired, unknown role) unwraps to
// domain.ErrUnauthenticated.
func (m *TokenManager) Verify(raw string) (*domain.Session, error) {
	if raw == "" {
		return nil, domain.ErrUnauthenticated
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	role, ok := domain.ParseRoleName(claims.Role.Name)
	if !ok || claims.UserID == "" {
		return nil, fmt.Errorf("%w: malformed session claims", domain.ErrUnauthenticated)
	}

	s := &domain.Session{
		UserID:   claims.UserID,
		Username: claims.Username,
		Name:     claims.Name,
		Role:     domain.Role{ID: claims.Role.ID, Name: role},
		Version:  claims.Version,
		TokenID:  claims.ID,
	}
	if claims.Specialty != nil {
		s.Specialty = &domain.Specialty{ID: claims.Specialty.ID, Name: claims.Specialty.Name}
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return s, nil
}
