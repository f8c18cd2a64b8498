package main

import (
	"fmt"
	"os"

	"github.com/xaionaro-go/vidpipe/types"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML-file counterpart of the command line
// flags; flags win over the file.
type Config struct {
	Resolution    types.Resolution `yaml:"resolution"`
	OutputPath    string           `yaml:"output_path"`
	NetPprofAddr  string           `yaml:"net_pprof_listen_addr"`
	StatsInterval uint             `yaml:"stats_interval_secs"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{
		StatsInterval: 1,
	}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read the config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse the config file '%s': %w", path, err)
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = 1
	}
	return cfg, nil
}
