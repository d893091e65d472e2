package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList keeps logged-out token ids in Redis until they expire.
type RevocationList struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationList constructs a RevocationList.
func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client, now: time.Now}
}

func (l *RevocationList) key(tokenID string) string {
	return "revoked:" + tokenID
}

// Revoke records tokenID as revoked until the token would have expired.
func (l *RevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, l.key(tokenID), 1, ttl).Err()
}

// IsRevoked implements RevocationChecker.
func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var _ RevocationChecker = (*RevocationList)(nil)
