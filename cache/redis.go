package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/golang/snappy"
	"github.com/redis/go-redis/v9"
)

// RedisBackend is the optional distributed Plan Cache backend, grounded
// on client.go's WrapRedis constructor. Entries are gob-encoded then
// snappy-compressed before being written, since a distributed cache pays
// for every byte crossing the network that an in-process map does not.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func init() {
	// BoundValues holds interface{} elements; gob needs every concrete
	// type that can appear registered up front. These cover every scalar
	// structpb.Value.AsInterface() can produce.
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(false)
}

// NewRedisBackend wraps an existing go-redis client. prefix namespaces
// keys so a Plan Cache can share a Redis instance with other consumers.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) fullKey(key string) string {
	return r.prefix + key
}

func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool) {
	compressed, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		return nil, false
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		return nil, false
	}
	return &e, true
}

func (r *RedisBackend) Set(ctx context.Context, key string, e *Entry, ttl time.Duration) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return
	}
	compressed := snappy.Encode(nil, buf.Bytes())
	r.client.Set(ctx, r.fullKey(key), compressed, ttl)
}
