package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"mediguide/internal/config"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 6379
	dialTimeout = 3 * time.Second
)

var errNoClient = errors.New("redis client not initialized")

// Client is the cache connection shared by the embedding cache.
type Client struct {
	rdb *redis.Client
}

// NewRedisClient connects using the [redis] section and verifies the server answers.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	return Dial(ctx, &redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func Dial(ctx context.Context, opts *redis.Options) (*Client, error) {
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) conn() (*redis.Client, error) {
	if c == nil || c.rdb == nil {
		return nil, errNoClient
	}
	return c.rdb, nil
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rdb, err := c.conn()
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, value, ttl).Err()
}

// MGet returns one entry per key, nil where the key is absent.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	rdb, err := c.conn()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return rdb.MGet(ctx, keys...).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	rdb, err := c.conn()
	if err != nil || len(keys) == 0 {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
