package options

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DirectoryOptions)(nil)

const (
	DirectoryBackendFile     = "file"
	DirectoryBackendPostgres = "postgres"
)

// DirectoryOptions selects where devices and their vehicle assignments come from.
type DirectoryOptions struct {
	Backend string `json:"backend" mapstructure:"backend"`

	// File is the YAML document used by the file backend.
	File string `json:"file" mapstructure:"file"`

	// Watch reloads the file when it changes.
	Watch bool `json:"watch" mapstructure:"watch"`

	// CacheSize and CacheTTL configure the lookup cache. A zero size disables it.
	CacheSize int           `json:"cache-size" mapstructure:"cache-size"`
	CacheTTL  time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
}

func NewDirectoryOptions() *DirectoryOptions {
	return &DirectoryOptions{
		Backend:   DirectoryBackendFile,
		File:      "devices.yaml",
		Watch:     true,
		CacheSize: 1024,
		CacheTTL:  30 * time.Second,
	}
}

func (o *DirectoryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if !slices.Contains([]string{DirectoryBackendFile, DirectoryBackendPostgres}, o.Backend) {
		errors = append(errors, fmt.Errorf("--directory.backend must be %q or %q, got %q",
			DirectoryBackendFile, DirectoryBackendPostgres, o.Backend))
	}
	if o.Backend == DirectoryBackendFile && o.File == "" {
		errors = append(errors, fmt.Errorf("--directory.file is required for the file backend"))
	}
	if o.CacheSize < 0 {
		errors = append(errors, fmt.Errorf("--directory.cache-size must not be negative"))
	}
	if o.CacheSize > 0 && o.CacheTTL <= 0 {
		errors = append(errors, fmt.Errorf("--directory.cache-ttl must be positive when caching is enabled"))
	}

	return errors
}

func (o *DirectoryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, "directory.backend", o.Backend, "Device directory backend ('file' or 'postgres').")
	fs.StringVar(&o.File, "directory.file", o.File, "YAML file listing devices and assignments (file backend).")
	fs.BoolVar(&o.Watch, "directory.watch", o.Watch, "Reload the directory file when it changes.")
	fs.IntVar(&o.CacheSize, "directory.cache-size", o.CacheSize, "Maximum number of cached directory lookups. 0 disables caching.")
	fs.DurationVar(&o.CacheTTL, "directory.cache-ttl", o.CacheTTL, "How long a directory lookup stays cached.")
}
