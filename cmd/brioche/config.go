// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the optional ~/.config/brioche/config.yaml file.
type Config struct {
	// DataDir overrides the content store location. The BRIOCHE_DATA_DIR
	// environment variable wins over this.
	DataDir string `yaml:"data_dir,omitempty"`

	// BaseRoot overrides the pinned base root image for the host
	// architecture.
	BaseRoot BaseRootConfig `yaml:"base_root,omitempty"`
}

// BaseRootConfig points at an alternate minimal root filesystem image.
type BaseRootConfig struct {
	URL  string `yaml:"url,omitempty"`
	Hash string `yaml:"hash,omitempty"`
}

// defaultConfigPath returns ~/.config/brioche/config.yaml, honoring
// XDG_CONFIG_HOME.
func defaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "brioche", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "brioche", "config.yaml"), nil
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing file yields an empty config; an explicitly named
// file that cannot be read is an error.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		defaultPath, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
