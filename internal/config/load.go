package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. BGTASK_RUN_TASKS.
const EnvPrefix = "BGTASK"

// LoadOptions points Load at optional files.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty, bgtask.yaml is
	// looked up in the working directory and skipped if absent.
	ConfigFile string
	// EnvFile is a dotenv file merged into the process environment.
	// Variables already set are not overridden. Missing files are ignored.
	EnvFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.tasks", 20)
	v.SetDefault("run.payload_size", 64*1024)
	v.SetDefault("run.work", 50*time.Millisecond)
	v.SetDefault("run.failure_rate", 0.1)
	v.SetDefault("run.wait_timeout", 30*time.Second)
	v.SetDefault("run.category", "checksum")
	v.SetDefault("run.history", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.namespace", "backgroundtask")
	v.SetDefault("metrics.poll_interval", time.Second)
}

// Load reads configuration. Environment variables take precedence over the
// config file, which takes precedence over defaults.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName("bgtask")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
