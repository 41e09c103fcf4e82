// Package config provides configuration management for mdbook-env using
// Viper for loading from files, environment variables, command-line flags
// and the book's own book.toml.
//
// Sources by precedence: flags, MDBOOK_ENV_ environment variables, the
// config file, the [preprocessor.env] table of book.toml, defaults. The
// configuration selects the builtin environments, adds user environments
// and tunes logging, the chapter worker pool and the watch command.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"

	"github.com/conneroisu/mdbook-env/internal/env"
	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// Config keys.
const (
	KeyNoBuiltin     = "no-builtin"
	KeyWorkers       = "workers"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogDir        = "log.dir"
	KeyWatchSrc      = "watch.src"
	KeyWatchOut      = "watch.out"
	KeyWatchDebounce = "watch.debounce"
	KeyEnvironments  = "environments"
)

// Defaults.
const (
	DefaultWorkers       = 4
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultWatchSrc      = "src"
	DefaultWatchOut      = "build/env"
	DefaultWatchDebounce = 300 * time.Millisecond
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
)

type Config struct {
	NoBuiltin    bool                         `mapstructure:"no-builtin" yaml:"no-builtin" json:"no-builtin"`
	Workers      int                          `mapstructure:"workers" yaml:"workers" json:"workers"`
	Log          LogConfig                    `mapstructure:"log" yaml:"log" json:"log"`
	Watch        WatchConfig                  `mapstructure:"watch" yaml:"watch" json:"watch"`
	Environments map[string]EnvironmentConfig `mapstructure:"environments" yaml:"environments" json:"environments"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	// Dir additionally writes logs to a dated file in this directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
}

type WatchConfig struct {
	Src      string        `mapstructure:"src" yaml:"src" json:"src"`
	Out      string        `mapstructure:"out" yaml:"out" json:"out"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// EnvironmentConfig is one user environment.
type EnvironmentConfig struct {
	Template  string `mapstructure:"template" yaml:"template" json:"template"`
	CounterID string `mapstructure:"counter_id" yaml:"counter_id,omitempty" json:"counter_id,omitempty"`
}

// SetDefaults registers the default values on v. Keys only become visible
// to MDBOOK_ENV_ variables once they are known to viper, so callers reading
// the environment set defaults first. Book settings applied afterwards
// replace them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyNoBuiltin, false)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyWatchSrc, DefaultWatchSrc)
	v.SetDefault(KeyWatchOut, DefaultWatchOut)
	v.SetDefault(KeyWatchDebounce, DefaultWatchDebounce)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, enverrors.NewConfigError(enverrors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}

	// Apply defaults for keys no source has set
	if !v.IsSet(KeyWorkers) {
		config.Workers = DefaultWorkers
	}
	if !v.IsSet(KeyLogLevel) {
		config.Log.Level = DefaultLogLevel
	}
	if !v.IsSet(KeyLogFormat) {
		config.Log.Format = DefaultLogFormat
	}
	if !v.IsSet(KeyWatchSrc) {
		config.Watch.Src = DefaultWatchSrc
	}
	if !v.IsSet(KeyWatchOut) {
		config.Watch.Out = DefaultWatchOut
	}
	if !v.IsSet(KeyWatchDebounce) {
		config.Watch.Debounce = DefaultWatchDebounce
	}
	if config.Environments == nil {
		config.Environments = make(map[string]EnvironmentConfig)
	}
	config.Log.Level = strings.ToLower(strings.TrimSpace(config.Log.Level))
	config.Log.Format = strings.ToLower(strings.TrimSpace(config.Log.Format))

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ApplyBookConfig layers the [preprocessor.env] table of book.toml under
// every other source. Keys already set by a flag, the environment or the
// config file keep their value.
func ApplyBookConfig(v *viper.Viper, table map[string]interface{}) {
	for key, value := range flatten("", table) {
		v.SetDefault(key, value)
	}
}

func flatten(prefix string, m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, value := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch nested := value.(type) {
		case map[string]interface{}:
			for fk, fv := range flatten(key, nested) {
				out[fk] = fv
			}
		default:
			out[key] = value
		}
	}
	return out
}

// Validate checks every field and reports all problems at once.
func Validate(config *Config) error {
	var errs enverrors.ValidationErrorCollection

	if config.Workers < 1 {
		errs.AddField(KeyWorkers, config.Workers, "must be at least 1")
	}
	if !contains(validLogLevels, config.Log.Level) {
		errs.AddField(KeyLogLevel, config.Log.Level, "unknown log level", validLogLevels...)
	}
	if !contains(validLogFormats, config.Log.Format) {
		errs.AddField(KeyLogFormat, config.Log.Format, "unknown log format", validLogFormats...)
	}
	if config.Watch.Debounce < 0 {
		errs.AddField(KeyWatchDebounce, config.Watch.Debounce, "must not be negative")
	}

	for _, name := range sortedNames(config.Environments) {
		e := config.Environments[name]
		field := KeyEnvironments + "." + name
		if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			errs.AddField(field, name, "environment name must be non-empty and contain no whitespace")
		}
		if e.Template == "" {
			errs.AddField(field+".template", e.Template, "template must not be empty")
		}
		if strings.IndexFunc(e.CounterID, unicode.IsSpace) >= 0 {
			errs.AddField(field+".counter_id", e.CounterID, "counter id must contain no whitespace")
		}
	}

	if errs.HasErrors() {
		return errs.ToEnvError()
	}
	return nil
}

// BuildRegistry creates the environment registry described by config:
// the builtins unless disabled, then every user environment in name order.
// A user environment with a builtin's name replaces it.
func BuildRegistry(config *Config) (*env.Registry, error) {
	registry := env.NewRegistry()
	if !config.NoBuiltin {
		registry.RegisterBuiltin(env.BuiltinAll)
	}

	for _, name := range sortedNames(config.Environments) {
		e := config.Environments[name]
		if err := registry.Register(name, e.Template, e.CounterID); err != nil {
			if enverrors.IsTemplateSyntaxError(err) {
				return nil, fmt.Errorf("environment `%s` has a malformed template: %w", name, err)
			}
			return nil, fmt.Errorf("failed to register environment `%s`: %w", name, err)
		}
	}

	return registry, nil
}

func sortedNames(envs map[string]EnvironmentConfig) []string {
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
