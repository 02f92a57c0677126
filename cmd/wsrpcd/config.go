// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// fileConfig maps wsrpcd's config.toml keys to runtime settings.
type fileConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Htdocs   string `toml:"htdocs"`
	LogLevel string `toml:"log_level"`
}

func defaultConfig() fileConfig {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return fileConfig{
		Host:     "localhost",
		Port:     8765,
		Htdocs:   cwd,
		LogLevel: "info",
	}
}

// loadConfig overlays a TOML file onto the defaults. Unknown keys are a
// hard error so typos do not silently fall back to defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}
	return cfg, nil
}
