package checkpoint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"signalchat/internal/domain"
)

// Redis keeps the watermark under a single key, for deployments without a
// writable local disk.
type Redis struct {
	rdb *redis.Client
	key string
}

// NewRedis connects to addr and verifies the connection with a PING.
func NewRedis(addr, key string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return &Redis{rdb: rdb, key: key}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Read(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return domain.DefaultWatermark, nil
	}
	if err != nil {
		return "", &ReadError{Location: "redis:" + r.key, Err: err}
	}

	s := strings.TrimSpace(v)
	if s == "" {
		return "", &ReadError{Location: "redis:" + r.key, Err: ErrEmpty}
	}
	return s, nil
}

func (r *Redis) Write(ctx context.Context, now time.Time) error {
	if err := r.rdb.Set(ctx, r.key, format(now), 0).Err(); err != nil {
		return fmt.Errorf("write checkpoint redis:%s: %w", r.key, err)
	}
	return nil
}
