// Package revocation tracks dead token identifiers in Redis. Tombstones
// carry a TTL equal to the remaining token lifetime, so the index cleans
// itself and survives process restarts. Logout during a deploy stays
// effective.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

type Index struct {
	redis *redis.Client
}

func NewIndex(client *redis.Client) *Index {
	return &Index{redis: client}
}

func key(tokenID string) string {
	return keyPrefix + tokenID
}

// Revoke inserts a tombstone for tokenID expiring at tokenExpiry. Revoking
// an already-expired token is a no-op.
func (i *Index) Revoke(ctx context.Context, tokenID string, tokenExpiry time.Time) error {
	ttl := time.Until(tokenExpiry)
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := i.redis.Set(ctx, key(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation set: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID holds a live tombstone. On index
// failure it fails closed: the caller must treat (true, err) as revoked.
func (i *Index) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := i.redis.Exists(ctx, key(tokenID)).Result()
	if err != nil {
		return true, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}
