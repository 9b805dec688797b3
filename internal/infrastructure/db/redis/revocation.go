package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/pkg/config"
)

// versionTTL keeps a published version for as long as any session may live.
const versionTTL = config.MaxSessionTTL

// RevocationStore tracks invalidated sessions in Redis.
// Key formats:
//
//	session:ver:<user_id>      minimum accepted session version
//	session:revoked:<jti>      deny-listed token, expires with the token
type RevocationStore struct {
	client redis.UniversalClient
}

// NewRevocationStore creates a RevocationStore wrapping the given Redis client.
func NewRevocationStore(client redis.UniversalClient) *RevocationStore {
	return &RevocationStore{client: client}
}

// PublishVersion records version as the minimum accepted for userID. A
// lower version never overwrites a higher one.
func (s *RevocationStore) PublishVersion(ctx context.Context, userID string, version int64) error {
	key := versionKey(userID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current >= version && err == nil {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, strconv.FormatInt(version, 10), versionTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("%w: publish session version: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeToken deny-lists tokenID until expiresAt. Already expired tokens
// are ignored.
func (s *RevocationStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoke token: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the session's token was deny-listed or its
// version is below the published one.
func (s *RevocationStore) IsRevoked(ctx context.Context, session *domain.Session) (bool, error) {
	keys := []string{versionKey(session.UserID)}
	if session.TokenID != "" {
		keys = append(keys, revokedKey(session.TokenID))
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: revocation check: %w", domain.ErrStoreUnavailable, err)
	}
	return revoked(session, vals)
}

// revoked evaluates an MGET reply for [version, deny-list] keys.
func revoked(session *domain.Session, vals []any) (bool, error) {
	if len(vals) > 1 && vals[1] != nil {
		return true, nil
	}
	if len(vals) == 0 || vals[0] == nil {
		return false, nil
	}

	raw, ok := vals[0].(string)
	if !ok {
		return false, fmt.Errorf("%w: unexpected session version type %T", domain.ErrStoreUnavailable, vals[0])
	}
	minVersion, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: corrupt session version %q", domain.ErrStoreUnavailable, raw)
	}
	return session.Version < minVersion, nil
}

func versionKey(userID string) string {
	return "session:ver:" + userID
}

func revokedKey(tokenID string) string {
	return "session:revoked:" + tokenID
}
