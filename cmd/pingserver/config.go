package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is pingserver's optional YAML-configurable settings, grounded on
// the teacher's cmd/aleutian config loading — a struct unmarshaled straight
// from a YAML file, with flags layered on top in main.go. Unlike the
// teacher's config package, there's no Global singleton or sync.Once: this
// command constructs and passes around one Config value.
type Config struct {
	Protocol      string        `yaml:"protocol"`
	HTTPAddr      string        `yaml:"http_addr"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
	FlushTimeout  time.Duration `yaml:"flush_timeout"`
	RateLimitRPS  float64       `yaml:"rate_limit_rps"`
	RateBurst     int           `yaml:"rate_burst"`
	TraceStdout   bool          `yaml:"trace_stdout"`
	MetricsStdout bool          `yaml:"metrics_stdout"`
}

func defaultConfig() Config {
	return Config{
		Protocol:     "lsp",
		HTTPAddr:     ":9090",
		LogLevel:     "info",
		LogFormat:    "text",
		FlushTimeout: 5 * time.Second,
		RateBurst:    1,
	}
}

// loadConfig overlays path's YAML contents onto the defaults. A missing file
// is not an error — unlike the teacher's config.Load, pingserver never
// writes one out on first run; it just runs on defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
