package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

func envPrefix(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// loadConfig applies, in increasing precedence, the config file, the
// environment and explicitly set flags onto opts. Flag "mqtt.broker" maps to
// key mqtt.broker and to PREFIX_MQTT_BROKER.
func loadConfig(name, file string, fs *pflag.FlagSet, opts any) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %s: %w", file, err)
		}
	}

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == configFlagName || !strings.Contains(f.Name, ".") || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(f.Name, f)
	})
	if bindErr != nil {
		return bindErr
	}

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}
	return nil
}
