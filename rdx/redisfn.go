package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Conn wraps the redis client shared by the caches and the token revocation list.
type Conn struct {
	client redis.UniversalClient
}

// Connect dials redis and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*Conn, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Conn{client: client}, nil
}

// NewConn wraps an existing client.
func NewConn(client redis.UniversalClient) *Conn {
	return &Conn{client: client}
}

func (c *Conn) Close() error {
	return c.client.Close()
}

// HealthPing reports whether redis answers.
func (c *Conn) HealthPing(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetJSON stores v under key with the given expiry.
func (c *Conn) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// SetJSONNX stores v under key only when the key is absent and reports
// whether it was written.
func (c *Conn) SetJSONNX(ctx context.Context, key string, v any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.SetNX(ctx, key, data, ttl).Result()
}

// GetJSON decodes the value under key into v, or returns ErrMiss.
func (c *Conn) GetJSON(ctx context.Context, key string, v any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (c *Conn) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}
