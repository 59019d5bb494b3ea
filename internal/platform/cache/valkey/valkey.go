// Package valkey provides a Valkey/Redis cache driver.
package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cache"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/cfg"
	"github.com/gloriousnetworker/dcarbon-portal/internal/platform/logutil"
)

// Config is the [cache.drivers.valkey] table.
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	Cluster     bool          `mapstructure:"cluster"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "portal:"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
}

func init() {
	cache.RegisterDriver("valkey", func(conf map[string]any, logger *slog.Logger) (cache.CacheWithCounter, error) {
		var c Config
		if err := cfg.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(&c, logger)
	})
}

// Cache stores entries in a Valkey server.
type Cache struct {
	client valkey.Client
	cfg    Config
	logger *slog.Logger
}

// New connects to the server and pings it. It fails fast when the server is unreachable.
func New(c *Config, logger *slog.Logger) (*Cache, error) {
	if c == nil {
		c = &Config{}
	}
	c.ApplyDefaults()
	logger = logutil.NoopIfNil(logger)

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{c.Addr},
		Password:          c.Password,
		SelectDB:          c.DB,
		DisableCache:      true,
		ForceSingleClient: !c.Cluster,
		Dialer:            net.Dialer{Timeout: c.DialTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %s: %w", c.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping %s: %w", c.Addr, err)
	}

	logger.Info("valkey cache connected", "addr", c.Addr, "db", c.DB)
	return &Cache{client: client, cfg: *c, logger: logger}, nil
}

func (c *Cache) key(k string) string { return c.cfg.KeyPrefix + k }

func (c *Cache) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.cfg.DefaultTTL
	}
	return ttl
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	return b, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(c.key(key)).Value(valkey.BinaryString(value)).
		PxMilliseconds(c.ttl(ttl).Milliseconds()).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	return nil
}

// Increment adds delta to a counter. The TTL is set when the counter is created.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	k := c.key(key)
	n, err := c.client.Do(ctx, c.client.B().Incrby().Key(k).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey incrby: %w", err)
	}
	if n == delta {
		cmd := c.client.B().Pexpire().Key(k).Milliseconds(c.ttl(ttl).Milliseconds()).Build()
		if err := c.client.Do(ctx, cmd).Error(); err != nil {
			return n, fmt.Errorf("valkey pexpire: %w", err)
		}
	}
	return n, nil
}

// GetCount returns the current counter value, 0 when absent.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("valkey get counter: %w", err)
	}
	return n, nil
}

// Close releases the client.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

var _ cache.CacheWithCounter = (*Cache)(nil)
