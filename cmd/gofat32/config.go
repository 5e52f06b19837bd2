package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/aligator/gofat32/vfs"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "GOFAT32"

// Config is read from a YAML file and overridden by GOFAT32_* variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" yaml:"logLevel"`

	// Image is a shortcut for a single disk image mounted at "/".
	Image    string `envconfig:"IMAGE"     yaml:"image"`
	ReadOnly bool   `envconfig:"READ_ONLY" yaml:"readOnly"`

	Disks  []DiskConfig  `ignored:"true" yaml:"disks"`
	Mounts []MountConfig `ignored:"true" yaml:"mounts"`
}

// DiskConfig attaches a disk image or a device node.
type DiskConfig struct {
	Connector string `yaml:"connector"`
	Disk      uint32 `yaml:"disk"`
	Path      string `yaml:"path"`
	Raw       bool   `yaml:"raw"`
	ReadOnly  bool   `yaml:"readOnly"`
}

// MountConfig is one line of the mount table.
type MountConfig struct {
	Prefix    string `yaml:"prefix"`
	Connector string `yaml:"connector"`
	Disk      uint32 `yaml:"disk"`
	Partition uint8  `yaml:"partition"`
	Kind      string `yaml:"kind"`
}

// LoadConfig reads configFile from fsys if it exists and applies the
// environment afterwards. A non-empty image replaces the configured disks.
func LoadConfig(fsys afero.Fs, configFile, image string) (*Config, error) {
	var c Config

	if configFile != "" {
		data, err := afero.ReadFile(fsys, configFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if image != "" {
		c.Image = image
		c.Disks = nil
	}
	if c.Image != "" && len(c.Disks) == 0 {
		c.Disks = []DiskConfig{{Path: c.Image, ReadOnly: c.ReadOnly}}
		c.Mounts = []MountConfig{{Prefix: "/"}}
	}

	return &c, c.Validate()
}

// Validate checks the names used in the mount table.
func (c *Config) Validate() error {
	if len(c.Disks) == 0 {
		return fmt.Errorf("no disks configured, set %s_IMAGE or add disks to the config file", envVarPrefix)
	}

	for i, d := range c.Disks {
		if d.Path == "" {
			return fmt.Errorf("disk %d: missing path", i)
		}
		if _, err := d.connector(); err != nil {
			return fmt.Errorf("disk %d: %w", i, err)
		}
	}

	for i, m := range c.Mounts {
		if _, err := m.connector(); err != nil {
			return fmt.Errorf("mount %d: %w", i, err)
		}
		if _, err := m.kind(); err != nil {
			return fmt.Errorf("mount %d: %w", i, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// Logger creates the text logger writing to stderr.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.LogLevel))

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseConnector(s string) (vfs.Connector, error) {
	if s == "" {
		return vfs.ConnectorAHCI, nil
	}
	return vfs.ParseConnector(s)
}

func (d DiskConfig) connector() (vfs.Connector, error) {
	return parseConnector(d.Connector)
}

func (m MountConfig) connector() (vfs.Connector, error) {
	return parseConnector(m.Connector)
}

func (m MountConfig) kind() (vfs.FSKind, error) {
	if m.Kind == "" {
		return vfs.KindAuto, nil
	}
	return vfs.ParseFSKind(m.Kind)
}
