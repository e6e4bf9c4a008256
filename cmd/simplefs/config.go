package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"

	"github.com/mit-pdos/go-simplefs/fs"
)

const (
	envVarPrefix  = "SIMPLEFS"
	defaultBlocks = 1024
)

type Config struct {
	Disk       string `envconfig:"DISK"        yaml:"disk"`
	Blocks     uint64 `envconfig:"BLOCKS"      yaml:"blocks"`
	CacheSlots uint64 `envconfig:"CACHE_SLOTS" yaml:"cacheSlots"`
	Seed       int64  `envconfig:"SEED"        yaml:"seed"`
	Debug      uint64 `envconfig:"DEBUG"       yaml:"debug"`
	Stats      bool   `envconfig:"STATS"       yaml:"stats"`
}

// LoadConfig reads the yaml file named by SIMPLEFS_CONFIG_FILE, if any,
// then lets SIMPLEFS_* environment variables override it.
func LoadConfig() (*Config, error) {
	var c Config
	if configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE"); configFile != "" {
		data, err := ioutil.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if c.Blocks == 0 {
		c.Blocks = defaultBlocks
	}
	return &c, nil
}

// ApplyFlags overrides c with the command-line flags that were given.
func (c *Config) ApplyFlags(ctx *cli.Context) {
	if ctx.IsSet("disk") {
		c.Disk = ctx.String("disk")
	}
	if ctx.IsSet("blocks") {
		c.Blocks = ctx.Uint64("blocks")
	}
	if ctx.IsSet("cache-slots") {
		c.CacheSlots = ctx.Uint64("cache-slots")
	}
	if ctx.IsSet("seed") {
		c.Seed = ctx.Int64("seed")
	}
	if ctx.IsSet("debug") {
		c.Debug = ctx.Uint64("debug")
	}
	if ctx.IsSet("stats") {
		c.Stats = ctx.Bool("stats")
	}
}

func (c *Config) Validate() error {
	if c.Disk == "" {
		return fmt.Errorf("missing required configuration: disk (--disk or %s_DISK)",
			envVarPrefix)
	}
	return nil
}

func (c *Config) Options() fs.Options {
	opts := fs.Options{
		CacheSlots: c.CacheSlots,
		Seed:       c.Seed,
	}
	if c.Stats {
		opts.Stats = os.Stderr
	}
	return opts
}
