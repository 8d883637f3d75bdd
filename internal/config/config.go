package config

import "time"

// Config holds all bgtask configuration.
type Config struct {
	Run     RunConfig     `mapstructure:"run" validate:"required"`
	Log     LogConfig     `mapstructure:"log" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics" validate:"required"`
}

// RunConfig controls the demo workload.
type RunConfig struct {
	Tasks       int           `mapstructure:"tasks" validate:"gt=0,lte=100000"`
	PayloadSize int           `mapstructure:"payload_size" validate:"gt=0,lte=67108864"`
	Work        time.Duration `mapstructure:"work" validate:"gte=0"`
	FailureRate float64       `mapstructure:"failure_rate" validate:"gte=0,lte=1"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout" validate:"gt=0"`
	Category    string        `mapstructure:"category" validate:"required"`
	History     int           `mapstructure:"history" validate:"gte=0"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
}

// MetricsConfig controls the optional Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr         string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Namespace    string        `mapstructure:"namespace" validate:"required"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}
