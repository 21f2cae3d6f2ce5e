package config

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// CustomConfigLocation is the flag naming extra config files.
	CustomConfigLocation = "config"
	envPrefix            = "JOBREG"
)

// BindCommandlineArguments makes parsed pflags visible through viper.
func BindCommandlineArguments() {
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		log.Error(err)
	}
}

// LoadConfig reads config.yaml from defaultPath, merges every file in
// overrides on top, applies JOBREG_* environment variables and decodes the
// result into config.
func LoadConfig(config interface{}, defaultPath string, overrides []string) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading config from %s", defaultPath)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, path := range overrides {
		if path == "" {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "merging config from %s", path)
		}
		log.Infof("Merged config from %s", path)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, CustomHooks...); err != nil {
		return errors.Wrap(err, "decoding config")
	}
	return nil
}
