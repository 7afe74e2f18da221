// Package config loads hcm settings with Viper from a .hcm.yml file,
// HCM_* environment variables and command-line flags.
//
// Settings cover where modules are discovered, how the build reports its
// result, where virtual hosts live in the tree, watch debouncing and
// logging. Load applies defaults for anything left unset and validates the
// result.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// File and environment names.
const (
	FileName     = ".hcm"
	FileType     = "yml"
	EnvPrefix    = "HCM"
	EnvConfigKey = "HCM_CONFIG_FILE"
)

// Setting keys.
const (
	KeyModulePaths   = "modules.paths"
	KeyModuleExclude = "modules.exclude"
	KeyBuildStrict   = "build.strict"
	KeyBuildFormat   = "build.format"
	KeyHostsPath     = "hst.hosts_path"
	KeyWatchDebounce = "watch.debounce"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
)

// Defaults.
const (
	DefaultFormat    = "yaml"
	DefaultHostsPath = "/hst:hst/hst:hosts"
	DefaultDebounce  = 300 * time.Millisecond
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultExclude skips build output and dependency folders.
var DefaultExclude = []string{"**/target/**", "**/node_modules/**"}

type Config struct {
	Modules ModulesConfig `mapstructure:"modules"`
	Build   BuildConfig   `mapstructure:"build"`
	HST     HSTConfig     `mapstructure:"hst"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Log     LogConfig     `mapstructure:"log"`
}

type ModulesConfig struct {
	Paths   []string `mapstructure:"paths"`
	Exclude []string `mapstructure:"exclude"`
}

type BuildConfig struct {
	// Strict turns merge warnings into a failed build.
	Strict bool   `mapstructure:"strict"`
	Format string `mapstructure:"format"`
}

type HSTConfig struct {
	HostsPath string `mapstructure:"hosts_path"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the defaults on v so they show up in v.AllSettings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyModulePaths, []string{"."})
	v.SetDefault(KeyModuleExclude, DefaultExclude)
	v.SetDefault(KeyBuildStrict, false)
	v.SetDefault(KeyBuildFormat, DefaultFormat)
	v.SetDefault(KeyHostsPath, DefaultHostsPath)
	v.SetDefault(KeyWatchDebounce, DefaultDebounce)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, newConfigError("failed to decode configuration", err)
	}

	applyDefaults(&config, v)

	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyDefaults(config *Config, v *viper.Viper) {
	if len(config.Modules.Paths) == 0 {
		config.Modules.Paths = []string{"."}
	}
	if !v.IsSet(KeyModuleExclude) && len(config.Modules.Exclude) == 0 {
		config.Modules.Exclude = append([]string(nil), DefaultExclude...)
	}
	if config.Build.Format == "" {
		config.Build.Format = DefaultFormat
	}
	if config.HST.HostsPath == "" {
		config.HST.HostsPath = DefaultHostsPath
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
}
