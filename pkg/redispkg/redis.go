// Package redispkg creates redis clients.
package redispkg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoAddress indicates an empty redis address.
var ErrNoAddress = errors.New("redis address cannot be empty")

// ParseAddress turns a plain host:port or a redis:// URL into client options.
func ParseAddress(address string) (*redis.Options, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoAddress
	}

	if !strings.Contains(address, "://") {
		return &redis.Options{Addr: address}, nil
	}

	return redis.ParseURL(address)
}

// NewClient connects to redis and checks the connection with PING.
func NewClient(ctx context.Context, address string) (*redis.Client, error) {
	opts, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
