// Package resultcache stores computed chart results in Redis.
//
// Redis-ключи:
//
//	SET adminquery:stat:<collection>:<xxh3(params)>  <codec><payload>  EX <ttl>
//
// Payload - JSON результата. Начиная с 1 KiB он сжимается zstd, первый байт
// значения указывает кодек.
package resultcache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"

	"github.com/ruslano69/adminquery/pkg/stats"
)

const (
	keyPrefix = "adminquery:stat:"

	codecJSON byte = 'j'
	codecZstd byte = 'z'

	// compressThreshold - размер JSON, начиная с которого payload сжимается
	compressThreshold = 1024

	DefaultTTL = 5 * time.Minute
)

var _ stats.Cache = (*Cache)(nil)

// Config описывает подключение к Redis
type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache - кеш результатов графиков в Redis
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New создает кеш с собственным Redis клиентом
func New(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c, err := NewWithClient(client, cfg.TTL)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// NewWithClient создает кеш поверх существующего клиента.
// ttl <= 0 означает DefaultTTL.
func NewWithClient(client *redis.Client, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Cache{client: client, ttl: ttl, encoder: encoder, decoder: decoder}, nil
}

// Key returns the Redis key of a collection and its request parameters.
func Key(collection string, params any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxh3.Hash(b))
	return keyPrefix + collection + ":" + hex.EncodeToString(sum[:]), nil
}

// Get decodes a cached result into dst. A miss returns false and no error.
func (c *Cache) Get(ctx context.Context, collection string, params any, dst any) (bool, error) {
	key, err := Key(collection, params)
	if err != nil {
		return false, err
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis GET failed: %w", err)
	}

	payload, err := c.decode(raw)
	if err != nil {
		return false, fmt.Errorf("cache entry %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("cache entry %s: failed to unmarshal: %w", key, err)
	}
	return true, nil
}

// Set stores a result for the configured TTL.
func (c *Cache) Set(ctx context.Context, collection string, params any, result any) error {
	key, err := Key(collection, params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, key, c.encode(payload), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached result of a collection and returns the
// number of removed keys.
func (c *Cache) Invalidate(ctx context.Context, collection string) (int64, error) {
	var removed int64
	iter := c.client.Scan(ctx, 0, keyPrefix+collection+":*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("redis DEL failed: %w", err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis SCAN failed: %w", err)
	}
	return removed, nil
}

func (c *Cache) encode(payload []byte) []byte {
	if len(payload) < compressThreshold {
		return append([]byte{codecJSON}, payload...)
	}
	return c.encoder.EncodeAll(payload, []byte{codecZstd})
}

func (c *Cache) decode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty value")
	}
	switch raw[0] {
	case codecJSON:
		return raw[1:], nil
	case codecZstd:
		out, err := c.decoder.DecodeAll(raw[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", raw[0])
	}
}

// Close закрывает соединение с Redis
func (c *Cache) Close() error {
	c.encoder.Close()
	c.decoder.Close()
	return c.client.Close()
}
