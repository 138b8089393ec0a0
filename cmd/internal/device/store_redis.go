package device

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces device keys.
const DefaultRedisPrefix = "deeplink:device:"

// RedisRegistry is a Registry storing one JSON value per device id.
// Insert relies on SETNX for atomicity. The client is owned by the caller.
type RedisRegistry struct {
	rdb    redis.UniversalClient
	prefix string
}

type redisDevice struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	MAC        string    `json:"mac"`
	Online     bool      `json:"online"`
	AddTime    time.Time `json:"add_time"`
	UpdateTime time.Time `json:"update_time"`
}

// NewRedisRegistry constructs a Registry. An empty prefix selects DefaultRedisPrefix.
func NewRedisRegistry(rdb redis.UniversalClient, prefix string) (*RedisRegistry, error) {
	if rdb == nil {
		return nil, errors.New("device: nil redis client")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix}, nil
}

func (r *RedisRegistry) key(id string) string { return r.prefix + id }

// Exists reports whether id is registered.
func (r *RedisRegistry) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert stores rec only if the key is absent.
func (r *RedisRegistry) Insert(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(redisDevice(rec))
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, r.key(rec.DeviceID), payload, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeviceExists
	}
	return nil
}

// Get loads a record by id.
func (r *RedisRegistry) Get(ctx context.Context, id string) (Record, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrDeviceNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var doc redisDevice
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, err
	}
	rec := Record(doc)
	rec.AddTime = rec.AddTime.UTC()
	rec.UpdateTime = rec.UpdateTime.UTC()
	return rec, nil
}
