package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/cartwin/internal/twin"
	"github.com/autopeer-io/cartwin/pkg/app"
	"github.com/autopeer-io/cartwin/pkg/log"
	"github.com/autopeer-io/cartwin/pkg/options"
)

type TwinOptions struct {
	MqttOptions      *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	TelemetryOptions *options.TelemetryOptions `json:"telemetry" mapstructure:"telemetry"`
	DirectoryOptions *options.DirectoryOptions `json:"directory" mapstructure:"directory"`
	StoreOptions     *options.StoreOptions     `json:"store" mapstructure:"store"`
	PostgresOptions  *options.PostgresOptions  `json:"postgres" mapstructure:"postgres"`
	S3Options        *options.S3Options        `json:"s3" mapstructure:"s3"`
	RedisOptions     *options.RedisOptions     `json:"redis" mapstructure:"redis"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*TwinOptions)(nil)

func NewTwinOptions() *TwinOptions {
	o := &TwinOptions{
		MqttOptions:      options.NewMqttOptions(),
		HttpOptions:      options.NewHttpOptions(),
		TelemetryOptions: options.NewTelemetryOptions(),
		DirectoryOptions: options.NewDirectoryOptions(),
		StoreOptions:     options.NewStoreOptions(),
		PostgresOptions:  options.NewPostgresOptions(),
		S3Options:        options.NewS3Options(),
		RedisOptions:     options.NewRedisOptions(),
		Log:              log.NewOptions(),
	}

	return o
}

func (o *TwinOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.TelemetryOptions.AddFlags(fss.FlagSet("telemetry"))
	o.DirectoryOptions.AddFlags(fss.FlagSet("directory"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.PostgresOptions.AddFlags(fss.FlagSet("postgres"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *TwinOptions) Complete() error {
	return nil
}

// usesPostgres reports whether any backend needs the database.
func (o *TwinOptions) usesPostgres() bool {
	return o.DirectoryOptions.Backend == options.DirectoryBackendPostgres ||
		o.StoreOptions.Backend == options.StoreBackendPostgres
}

func (o *TwinOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.TelemetryOptions.Validate()...)
	errs = append(errs, o.DirectoryOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	if o.usesPostgres() {
		errs = append(errs, o.PostgresOptions.Validate()...)
	}
	if o.StoreOptions.Backend == options.StoreBackendS3 {
		errs = append(errs, o.S3Options.Validate()...)
	}
	if o.StoreOptions.Backend == options.StoreBackendRedis {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *TwinOptions) Config() (*twin.Config, error) {
	return &twin.Config{
		MqttOptions:      o.MqttOptions,
		HttpOptions:      o.HttpOptions,
		TelemetryOptions: o.TelemetryOptions,
		DirectoryOptions: o.DirectoryOptions,
		StoreOptions:     o.StoreOptions,
		PostgresOptions:  o.PostgresOptions,
		S3Options:        o.S3Options,
		RedisOptions:     o.RedisOptions,
	}, nil
}
