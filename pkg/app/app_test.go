package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type demoOptions struct {
	Demo *demoGroup `mapstructure:"demo"`

	completed bool
	invalid   error
}

type demoGroup struct {
	Name     string        `mapstructure:"name"`
	Interval time.Duration `mapstructure:"interval"`
	Size     int           `mapstructure:"size"`
}

func newDemoOptions() *demoOptions {
	return &demoOptions{Demo: &demoGroup{Name: "default", Interval: time.Second, Size: 1}}
}

func (o *demoOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("demo")
	fs.StringVar(&o.Demo.Name, "demo.name", o.Demo.Name, "name")
	fs.DurationVar(&o.Demo.Interval, "demo.interval", o.Demo.Interval, "interval")
	fs.IntVar(&o.Demo.Size, "demo.size", o.Demo.Size, "size")
	return fss
}

func (o *demoOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *demoOptions) Validate() error { return o.invalid }

func runDemo(t *testing.T, opts *demoOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp("demo-app", "demo",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	if err == nil {
		assert.True(t, ran)
	}
	return err
}

func TestDefaults(t *testing.T) {
	opts := newDemoOptions()
	require.NoError(t, runDemo(t, opts))

	assert.Equal(t, "default", opts.Demo.Name)
	assert.Equal(t, time.Second, opts.Demo.Interval)
	assert.True(t, opts.completed)
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("demo:\n  name: file\n  interval: 5s\n  size: 3\n"), 0o600))
	t.Setenv("DEMO_APP_DEMO_SIZE", "7")

	opts := newDemoOptions()
	require.NoError(t, runDemo(t, opts, "--config", path, "--demo.name", "flag"))

	assert.Equal(t, "flag", opts.Demo.Name, "flags win")
	assert.Equal(t, 7, opts.Demo.Size, "environment beats the file")
	assert.Equal(t, 5*time.Second, opts.Demo.Interval, "file beats defaults")
}

func TestValidationFailure(t *testing.T) {
	opts := newDemoOptions()
	opts.invalid = errors.New("bad options")

	assert.EqualError(t, runDemo(t, opts), "bad options")
}

func TestRejectsArgumentsAndMissingConfig(t *testing.T) {
	assert.Error(t, runDemo(t, newDemoOptions(), "extra"))
	assert.Error(t, runDemo(t, newDemoOptions(), "--config", filepath.Join(t.TempDir(), "missing.yaml")))
}
