package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TelemetryOptions)(nil)

// TelemetryOptions tunes the in-memory state store, liveness detection,
// persistence rate and broadcast queue.
type TelemetryOptions struct {
	// HistorySize is the ring buffer capacity kept per vehicle.
	HistorySize int `json:"history-size" mapstructure:"history-size"`

	// SilenceTimeout is how long a vehicle may stay quiet before it is marked offline.
	SilenceTimeout time.Duration `json:"silence-timeout" mapstructure:"silence-timeout"`

	// CheckInterval is the liveness check period.
	CheckInterval time.Duration `json:"check-interval" mapstructure:"check-interval"`

	// PersistInterval is the minimum time between two durable writes for one vehicle.
	PersistInterval time.Duration `json:"persist-interval" mapstructure:"persist-interval"`

	// PersistTimeout bounds a single durable write.
	PersistTimeout time.Duration `json:"persist-timeout" mapstructure:"persist-timeout"`

	// ResolveTimeout bounds the device directory lookups made for one message.
	ResolveTimeout time.Duration `json:"resolve-timeout" mapstructure:"resolve-timeout"`

	// BroadcastQueue is the hand-off queue length into the broadcaster.
	BroadcastQueue int `json:"broadcast-queue" mapstructure:"broadcast-queue"`
}

func NewTelemetryOptions() *TelemetryOptions {
	return &TelemetryOptions{
		HistorySize:     100,
		SilenceTimeout:  10 * time.Second,
		CheckInterval:   5 * time.Second,
		PersistInterval: 5 * time.Second,
		PersistTimeout:  3 * time.Second,
		ResolveTimeout:  2 * time.Second,
		BroadcastQueue:  256,
	}
}

func (o *TelemetryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.HistorySize < 1 {
		errors = append(errors, fmt.Errorf("--telemetry.history-size must be at least 1"))
	}
	if o.SilenceTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.silence-timeout must be positive"))
	}
	if o.CheckInterval <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.check-interval must be positive"))
	} else if o.CheckInterval > o.SilenceTimeout/2 {
		errors = append(errors, fmt.Errorf("--telemetry.check-interval (%s) must not exceed half of --telemetry.silence-timeout (%s)",
			o.CheckInterval, o.SilenceTimeout))
	}
	if o.PersistInterval <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.persist-interval must be positive"))
	}
	if o.PersistTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.persist-timeout must be positive"))
	}
	if o.ResolveTimeout <= 0 {
		errors = append(errors, fmt.Errorf("--telemetry.resolve-timeout must be positive"))
	}
	if o.BroadcastQueue < 1 {
		errors = append(errors, fmt.Errorf("--telemetry.broadcast-queue must be at least 1"))
	}

	return errors
}

func (o *TelemetryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.HistorySize, "telemetry.history-size", o.HistorySize, "Number of recent samples kept per vehicle.")
	fs.DurationVar(&o.SilenceTimeout, "telemetry.silence-timeout", o.SilenceTimeout, "Silence after which a vehicle is marked offline.")
	fs.DurationVar(&o.CheckInterval, "telemetry.check-interval", o.CheckInterval, "Period of the liveness check. Must not exceed half the silence timeout.")
	fs.DurationVar(&o.PersistInterval, "telemetry.persist-interval", o.PersistInterval, "Minimum time between two persisted snapshots of one vehicle.")
	fs.DurationVar(&o.PersistTimeout, "telemetry.persist-timeout", o.PersistTimeout, "Time allowed for a single persistence write.")
	fs.DurationVar(&o.ResolveTimeout, "telemetry.resolve-timeout", o.ResolveTimeout, "Time allowed for resolving one message's device and vehicle.")
	fs.IntVar(&o.BroadcastQueue, "telemetry.broadcast-queue", o.BroadcastQueue, "Length of the queue handing updates to the broadcaster.")
}
