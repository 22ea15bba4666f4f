package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/options"
)

type fakeRedis struct {
	sets    map[string][]byte
	ttls    map[string]time.Duration
	adds    []*redis.XAddArgs
	setErr  error
	pingErr error
	closed  bool
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	if f.sets == nil {
		f.sets = map[string][]byte{}
		f.ttls = map[string]time.Duration{}
	}
	f.sets[key] = value.([]byte)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.adds = append(f.adds, a)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisInsertTelemetry(t *testing.T) {
	fake := &fakeRedis{}
	opts := options.NewRedisOptions()
	opts.LatestTTL = time.Hour
	w := newRedis(fake, opts)

	rec := &model.TelemetryRecord{
		VehicleID:  "V1",
		DeviceID:   "D1",
		Fields:     model.Fields{"rpm": 812.5},
		RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 250e6, time.UTC),
	}
	require.NoError(t, w.InsertTelemetry(context.Background(), rec))

	body, ok := fake.sets["cartwin:vehicle:V1:latest"]
	require.True(t, ok)
	assert.Equal(t, time.Hour, fake.ttls["cartwin:vehicle:V1:latest"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "V1", got["vehicle_id"])
	assert.Equal(t, "2025-06-01T12:00:00.250Z", got["recorded_at"])
	assert.Equal(t, map[string]any{"rpm": 812.5}, got["data"])

	require.Len(t, fake.adds, 1)
	add := fake.adds[0]
	assert.Equal(t, "cartwin:vehicle:V1:telemetry", add.Stream)
	assert.Equal(t, int64(10000), add.MaxLen)
	assert.True(t, add.Approx)
	values := add.Values.(map[string]interface{})
	assert.Equal(t, "D1", values["device_id"])
	assert.Equal(t, body, values["data"])
}

func TestRedisInsertTelemetrySetError(t *testing.T) {
	fake := &fakeRedis{setErr: errors.New("READONLY")}
	w := newRedis(fake, options.NewRedisOptions())

	err := w.InsertTelemetry(context.Background(), &model.TelemetryRecord{VehicleID: "V1", Fields: model.Fields{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	assert.Empty(t, fake.adds)
}

func TestRedisPingAndClose(t *testing.T) {
	fake := &fakeRedis{pingErr: errors.New("connection refused")}
	w := newRedis(fake, options.NewRedisOptions())

	assert.Error(t, w.Ping(context.Background()))
	fake.pingErr = nil
	assert.NoError(t, w.Ping(context.Background()))

	require.NoError(t, w.Close())
	assert.True(t, fake.closed)
}

func TestRedisKeyWithoutPrefix(t *testing.T) {
	opts := options.NewRedisOptions()
	opts.KeyPrefix = ""
	w := newRedis(&fakeRedis{}, opts)
	assert.Equal(t, "vehicle:V9:latest", w.key("V9", "latest"))
}
