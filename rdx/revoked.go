package rdx

import (
	"context"
	"time"
)

const revokedPrefix = "auth:revoked:"

// RevokedTokens is the redis-backed list of logged-out token ids.
type RevokedTokens struct {
	conn *Conn
}

func NewRevokedTokens(conn *Conn) *RevokedTokens {
	return &RevokedTokens{conn: conn}
}

// Revoke remembers id until its token would have expired anyway.
func (r *RevokedTokens) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.conn.client.Set(ctx, revokedPrefix+id, 1, ttl).Err()
}

func (r *RevokedTokens) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.conn.client.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
