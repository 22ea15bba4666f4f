package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartwin/pkg/options"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, NewTwinOptions().Validate())
}

func TestValidateAggregates(t *testing.T) {
	o := NewTwinOptions()
	o.TelemetryOptions.CheckInterval = o.TelemetryOptions.SilenceTimeout
	o.StoreOptions.Backend = "kafka"
	o.Log.Format = "xml"

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--telemetry.check-interval")
	assert.Contains(t, err.Error(), "--store.backend")
	assert.Contains(t, err.Error(), "--log.format")
}

func TestPostgresValidatedOnlyWhenUsed(t *testing.T) {
	o := NewTwinOptions()
	o.PostgresOptions.DSN = ""
	assert.NoError(t, o.Validate())

	o.StoreOptions.Backend = options.StoreBackendPostgres
	assert.Error(t, o.Validate())
}

func TestRedisValidatedOnlyWhenUsed(t *testing.T) {
	o := NewTwinOptions()
	o.RedisOptions.Addr = "no-port"
	assert.NoError(t, o.Validate())

	o.StoreOptions.Backend = options.StoreBackendRedis
	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--redis.addr")
}

func TestFlagsCoverEveryGroup(t *testing.T) {
	fss := NewTwinOptions().Flags()
	for _, name := range []string{"mqtt", "http", "telemetry", "directory", "store", "postgres", "s3", "redis", "log"} {
		fs, ok := fss.FlagSets[name]
		require.True(t, ok, name)
		assert.NotNil(t, fs.Lookup(name+"."+firstFlag(name)), name)
	}

	cfg, err := NewTwinOptions().Config()
	require.NoError(t, err)
	assert.Equal(t, options.DirectoryBackendFile, cfg.DirectoryOptions.Backend)
}

func firstFlag(group string) string {
	switch group {
	case "mqtt":
		return "broker"
	case "http":
		return "addr"
	case "telemetry":
		return "silence-timeout"
	case "directory", "store":
		return "backend"
	case "postgres":
		return "dsn"
	case "s3":
		return "endpoint"
	case "redis":
		return "addr"
	default:
		return "level"
	}
}
