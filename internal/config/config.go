// Package config loads the TOML configuration file.
package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bootenvtool/internal/arena"
	"bootenvtool/internal/imaging"
)

// DefaultPath is read when no configuration file is named explicitly.
const DefaultPath = "/etc/bootenvtool.toml"

type ArenaConfig struct {
	// Capacity is the size in bytes of every arena generation.
	Capacity int `toml:"capacity"`
}

type ProbeConfig struct {
	SysBlockDir string   `toml:"sys_block_dir"`
	DevDir      string   `toml:"dev_dir"`
	Exclude     []string `toml:"exclude"`
}

// EnvConfig locates the U-Boot environment. When Path is set the values
// are bound to the uboot_env.* script variables before any script runs.
type EnvConfig struct {
	Path  string `toml:"path"`
	Start int    `toml:"start"`
	Count int    `toml:"count"`
}

type ImageConfig struct {
	Compression string `toml:"compression"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ShellConfig struct {
	HistoryFile string `toml:"history_file"`
	Prompt      string `toml:"prompt"`
}

// Config is the complete configuration.
type Config struct {
	Arena ArenaConfig `toml:"arena"`
	Probe ProbeConfig `toml:"probe"`
	Env   EnvConfig   `toml:"env"`
	Image ImageConfig `toml:"image"`
	Log   LogConfig   `toml:"log"`
	Shell ShellConfig `toml:"shell"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Arena: ArenaConfig{Capacity: arena.DefaultCapacity},
		Probe: ProbeConfig{SysBlockDir: "/sys/block", DevDir: "/dev"},
		Image: ImageConfig{Compression: string(imaging.Gzip)},
		Log:   LogConfig{Level: "warning"},
		Shell: ShellConfig{Prompt: "> "},
	}
}

// Load reads the configuration at path over the defaults. A missing file
// is an error only when explicit is set.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			logrus.Debugf("No configuration file at %s", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "error reading configuration file %s", path)
	}

	md, err := toml.Decode(string(contents), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding configuration file %s", path)
	}
	for _, key := range md.Undecoded() {
		logrus.Warnf("Unknown configuration key %q in %s", key.String(), path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration file %s", path)
	}
	return cfg, nil
}

// Validate checks values that cannot be used as given.
func (c *Config) Validate() error {
	if c.Arena.Capacity <= 0 {
		return errors.Errorf("arena capacity must be positive, got %d", c.Arena.Capacity)
	}
	if c.Env.Start < 0 || c.Env.Count < 0 {
		return errors.Errorf("environment location %d+%d is negative", c.Env.Start, c.Env.Count)
	}
	if _, err := imaging.ParseAlgorithm(c.Image.Compression); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	return nil
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
