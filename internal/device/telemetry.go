// Package device keeps the scanner's latest telemetry and its heartbeat history.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"arise/internal/attendance"
)

const latestKey = "arise:device:latest"

// RedisStore keeps the latest heartbeat. A heartbeat older than the TTL has
// expired, which reads as an offline device.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a telemetry store. ttl defaults to two minutes.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save replaces the latest telemetry and resets its expiry.
func (s *RedisStore) Save(ctx context.Context, t attendance.DeviceTelemetry) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, latestKey, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save telemetry: %w", err)
	}
	return nil
}

// Latest returns the live telemetry, or nil when the device is offline.
func (s *RedisStore) Latest(ctx context.Context) (*attendance.DeviceTelemetry, error) {
	b, err := s.client.Get(ctx, latestKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load telemetry: %w", err)
	}
	var t attendance.DeviceTelemetry
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	return &t, nil
}
