// Package redisstore keeps courier presence and session markers in Redis.
//
// Keys:
//
//	presence:<courierId>  hash {online, active, lastSeen}
//	session:<courierId>   JSON marker with a TTL
package redisstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	presencePrefix = "presence:"
	sessionPrefix  = "session:"
)

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
