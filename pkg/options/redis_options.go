package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the Redis telemetry store.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// KeyPrefix namespaces every key written by cartwin.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// StreamMaxLen caps the per-vehicle record stream (approximately).
	StreamMaxLen int64 `json:"stream-max-len" mapstructure:"stream-max-len"`

	// LatestTTL expires the latest snapshot key. Zero keeps it forever.
	LatestTTL time.Duration `json:"latest-ttl" mapstructure:"latest-ttl"`
}

func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Addr:         "127.0.0.1:6379",
		KeyPrefix:    "cartwin",
		StreamMaxLen: 10000,
	}
}

func (o *RedisOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, fmt.Errorf("--redis.addr: %w", err))
	}
	if o.DB < 0 {
		errors = append(errors, fmt.Errorf("--redis.db must not be negative"))
	}
	if o.StreamMaxLen < 1 {
		errors = append(errors, fmt.Errorf("--redis.stream-max-len must be at least 1"))
	}
	if o.LatestTTL < 0 {
		errors = append(errors, fmt.Errorf("--redis.latest-ttl must not be negative"))
	}

	return errors
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Redis server address.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Redis password.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.StringVar(&o.KeyPrefix, "redis.key-prefix", o.KeyPrefix, "Prefix of every key written to Redis.")
	fs.Int64Var(&o.StreamMaxLen, "redis.stream-max-len", o.StreamMaxLen, "Approximate number of records kept per vehicle stream.")
	fs.DurationVar(&o.LatestTTL, "redis.latest-ttl", o.LatestTTL, "Expiry of the latest snapshot key. 0 disables expiry.")
}
