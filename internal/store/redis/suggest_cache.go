package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "sift"
	defaultTTL       = 10 * time.Minute
)

type Config struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled" default:"false"`
	Addr      string        `yaml:"addr" mapstructure:"addr" default:"localhost:6379"`
	Password  string        `yaml:"password" mapstructure:"password"`
	DB        int           `yaml:"db" mapstructure:"db" default:"0"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix" default:"sift"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl" default:"10m"`
}

// SuggestCache keeps suggest answers in redis. Entries of a suggester are
// namespaced by a version number; invalidating bumps the version so that
// stale entries are never read again and expire on their own.
type SuggestCache struct {
	client    *goredis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewSuggestCache(client *goredis.Client, cfg Config) *SuggestCache {
	c := &SuggestCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}
	if c.keyPrefix == "" {
		c.keyPrefix = defaultKeyPrefix
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	return c
}

func (c *SuggestCache) Get(ctx context.Context, suggesterID int64, key string) ([]string, bool, error) {
	version, err := c.version(ctx, suggesterID)
	if err != nil {
		return nil, false, err
	}

	val, err := c.client.Get(ctx, c.entryKey(suggesterID, version, key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached suggestions: %w", err)
	}

	var texts []string
	if err := json.Unmarshal(val, &texts); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached suggestions: %w", err)
	}
	return texts, true, nil
}

func (c *SuggestCache) Set(ctx context.Context, suggesterID int64, key string, texts []string) error {
	version, err := c.version(ctx, suggesterID)
	if err != nil {
		return err
	}

	if texts == nil {
		texts = []string{}
	}
	data, err := json.Marshal(texts)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	if err := c.client.Set(ctx, c.entryKey(suggesterID, version, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache suggestions: %w", err)
	}
	return nil
}

// Invalidate drops every entry of the suggester.
func (c *SuggestCache) Invalidate(ctx context.Context, suggesterID int64) error {
	if err := c.client.Incr(ctx, c.versionKey(suggesterID)).Err(); err != nil {
		return fmt.Errorf("invalidate suggestions of suggester %d: %w", suggesterID, err)
	}
	return nil
}

func (c *SuggestCache) version(ctx context.Context, suggesterID int64) (int64, error) {
	val, err := c.client.Get(ctx, c.versionKey(suggesterID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get suggester cache version: %w", err)
	}

	version, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse suggester cache version %q: %w", val, err)
	}
	return version, nil
}

func (c *SuggestCache) versionKey(suggesterID int64) string {
	return fmt.Sprintf("%s:suggest:%d:version", c.keyPrefix, suggesterID)
}

func (c *SuggestCache) entryKey(suggesterID, version int64, key string) string {
	return fmt.Sprintf("%s:suggest:%d:v%d:%s", c.keyPrefix, suggesterID, version, key)
}
