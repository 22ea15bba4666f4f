package twin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/directory"
	"github.com/autopeer-io/cartwin/internal/twin/server"
	"github.com/autopeer-io/cartwin/internal/twin/storage"
	"github.com/autopeer-io/cartwin/pkg/log"
	"github.com/autopeer-io/cartwin/pkg/mqtt"
	"github.com/autopeer-io/cartwin/pkg/options"
)

// resources owns what the server must release or prepare around its run.
type resources struct {
	db      *sql.DB
	bucket  *storage.S3
	cache   *storage.Redis
	runners []server.Server
}

func InitializePostgres(opts *options.PostgresOptions) (*sql.DB, error) {
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		log.Error(err, "failed to open postgres")
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return db, nil
}

func InitializeMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()

	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("cartwin-%s", hostname)
	}

	mqttclient, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "failed to new mqtt client")
		return nil, err
	}

	return mqttclient, nil
}

func (r *resources) postgres(opts *options.PostgresOptions) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := InitializePostgres(opts)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *resources) directory(cfg *Config) (core.DeviceDirectory, error) {
	opts := cfg.DirectoryOptions

	switch opts.Backend {
	case options.DirectoryBackendFile:
		f, err := directory.NewFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to load device directory: %w", err)
		}
		if opts.Watch {
			r.runners = append(r.runners, server.Func(f.Watch))
		}
		// Lookups are served from memory, so there is nothing to cache.
		return f, nil

	case options.DirectoryBackendPostgres:
		db, err := r.postgres(cfg.PostgresOptions)
		if err != nil {
			return nil, err
		}
		var dir core.DeviceDirectory = directory.NewPostgres(db)
		if opts.CacheSize > 0 {
			dir = directory.NewCached(dir, opts.CacheSize, opts.CacheTTL, nil)
		}
		return dir, nil
	}

	return nil, fmt.Errorf("unknown directory backend %q", opts.Backend)
}

func (r *resources) writer(cfg *Config) (core.TelemetryWriter, error) {
	switch cfg.StoreOptions.Backend {
	case options.StoreBackendNone:
		return storage.Nop{}, nil

	case options.StoreBackendPostgres:
		db, err := r.postgres(cfg.PostgresOptions)
		if err != nil {
			return nil, err
		}
		return storage.NewPostgres(db, cfg.StoreOptions.Table)

	case options.StoreBackendS3:
		s3, err := storage.NewS3(cfg.S3Options)
		if err != nil {
			return nil, err
		}
		r.bucket = s3
		return s3, nil

	case options.StoreBackendRedis:
		r.cache = storage.NewRedis(cfg.RedisOptions)
		return r.cache, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreOptions.Backend)
}

// prepare checks connectivity of the configured backends.
func (r *resources) prepare(ctx context.Context) error {
	if r.db != nil {
		if err := r.db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to reach postgres: %w", err)
		}
	}
	if r.bucket != nil {
		if err := r.bucket.CheckBucket(ctx); err != nil {
			return err
		}
	}
	if r.cache != nil {
		if err := r.cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *resources) close() error {
	var errs []error
	if r.db != nil {
		errs = append(errs, r.db.Close())
		r.db = nil
	}
	if r.cache != nil {
		errs = append(errs, r.cache.Close())
		r.cache = nil
	}
	return errors.Join(errs...)
}
