package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/qrv0/epgfetch/internal/logtrace"
)

const (
	DefaultURL        = "http://ru.epg.one/epg.xml.gz"
	DefaultOutputPath = "./epg.xml.gz"
	DefaultLogLevel   = "warn"

	EnvPrefix = "EPGFETCH"
)

// Keys shared by the YAML file, env vars and flag bindings.
const (
	KeyURL        = "url"
	KeyOutputPath = "output_path"
	KeyTimeout    = "timeout"
	KeyLogLevel   = "log_level"
)

// Config holds everything a single fetch needs.
type Config struct {
	URL        string        `mapstructure:"url"`
	OutputPath string        `mapstructure:"output_path"`
	Timeout    time.Duration `mapstructure:"timeout"` // 0 disables the request timeout
	LogLevel   string        `mapstructure:"log_level"`
}

// Default returns the configuration the tool runs with when nothing is set.
func Default() *Config {
	return &Config{
		URL:        DefaultURL,
		OutputPath: DefaultOutputPath,
		LogLevel:   DefaultLogLevel,
	}
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyURL, d.URL)
	v.SetDefault(KeyOutputPath, d.OutputPath)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyLogLevel, d.LogLevel)
}

// Load resolves the configuration from v. Flags must already be bound to v.
// When path is non-empty the YAML file at path is read and must exist.
// Environment variables use the EPGFETCH_ prefix, e.g. EPGFETCH_OUTPUT_PATH.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration can drive a fetch.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("url is required")
	}
	if strings.TrimSpace(c.OutputPath) == "" {
		return errors.New("output_path is required")
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout cannot be negative: %s", c.Timeout)
	}
	if _, err := logtrace.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Fields renders c for structured logs.
func (c *Config) Fields() logtrace.Fields {
	return logtrace.Fields{
		KeyURL:        c.URL,
		KeyOutputPath: c.OutputPath,
		KeyTimeout:    c.Timeout.String(),
		KeyLogLevel:   c.LogLevel,
	}
}
