package options

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StoreOptions)(nil)

const (
	StoreBackendNone     = "none"
	StoreBackendPostgres = "postgres"
	StoreBackendS3       = "s3"
	StoreBackendRedis    = "redis"
)

// StoreOptions selects the durable telemetry writer.
type StoreOptions struct {
	Backend string `json:"backend" mapstructure:"backend"`
	Table   string `json:"table" mapstructure:"table"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{
		Backend: StoreBackendNone,
		Table:   "telemetry",
	}
}

func (o *StoreOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if !slices.Contains([]string{StoreBackendNone, StoreBackendPostgres, StoreBackendS3, StoreBackendRedis}, o.Backend) {
		errors = append(errors, fmt.Errorf("--store.backend must be one of none, postgres, s3, redis, got %q", o.Backend))
	}
	if o.Backend == StoreBackendPostgres && o.Table == "" {
		errors = append(errors, fmt.Errorf("--store.table must not be empty"))
	}

	return errors
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "store.backend", o.Backend, "Durable telemetry writer ('none', 'postgres', 's3' or 'redis').")
	fs.StringVar(&o.Table, "store.table", o.Table, "Telemetry table name (postgres backend).")
}
