package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoked JWTs are stored under this prefix until they would have expired
// anyway, which gives logout real semantics on top of stateless tokens.
const jwtRevocationPrefix = "revokedjwt:"

// RevokeJWT stores the token in the revocation set for its remaining
// lifetime. A non-positive ttl means the token is already expired and there
// is nothing to do.
func RevokeJWT(ctx context.Context, client *redis.Client, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := jwtRevocationPrefix + token
	if err := client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to store JWT revocation: %w", err)
	}
	return nil
}

// IsJWTRevoked reports whether the token has been revoked via logout.
// Redis errors are returned so callers can decide whether to fail open.
func IsJWTRevoked(ctx context.Context, client *redis.Client, token string) (bool, error) {
	key := jwtRevocationPrefix + token
	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check JWT revocation: %w", err)
	}
	return n > 0, nil
}
