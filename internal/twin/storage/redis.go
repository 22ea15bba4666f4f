package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/options"
)

// redisCommands is the subset of *redis.Client the writer uses.
type redisCommands interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Redis keeps the latest persisted snapshot of every vehicle under
// <prefix>:vehicle:<id>:latest and appends each record to the capped stream
// <prefix>:vehicle:<id>:telemetry.
type Redis struct {
	client redisCommands
	prefix string
	maxLen int64
	ttl    time.Duration
}

var _ core.TelemetryWriter = (*Redis)(nil)

func NewRedis(opts *options.RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return newRedis(client, opts)
}

func newRedis(client redisCommands, opts *options.RedisOptions) *Redis {
	return &Redis{
		client: client,
		prefix: opts.KeyPrefix,
		maxLen: opts.StreamMaxLen,
		ttl:    opts.LatestTTL,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) InsertTelemetry(ctx context.Context, rec *model.TelemetryRecord) error {
	at := rec.RecordedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	body, err := json.Marshal(archivedRecord{
		VehicleID:  rec.VehicleID,
		DeviceID:   rec.DeviceID,
		Data:       rec.Fields,
		RecordedAt: at,
	})
	if err != nil {
		return fmt.Errorf("encode telemetry record: %w", err)
	}

	latest := r.key(rec.VehicleID, "latest")
	if err := r.client.Set(ctx, latest, body, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", latest, err)
	}

	stream := r.key(rec.VehicleID, "telemetry")
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"device_id":   rec.DeviceID,
			"recorded_at": at,
			"data":        body,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append to %s: %w", stream, err)
	}
	return nil
}

func (r *Redis) key(vehicleID, suffix string) string {
	if r.prefix == "" {
		return "vehicle:" + vehicleID + ":" + suffix
	}
	return r.prefix + ":vehicle:" + vehicleID + ":" + suffix
}
