// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	content := `
host = "0.0.0.0"
port = 9000
htdocs = "/srv/www"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "0.0.0.0" {
		t.Fatalf("unexpected host: %q", cfg.Host)
	}
	if cfg.Port != 9000 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.Htdocs != "/srv/www" {
		t.Fatalf("unexpected htdocs: %q", cfg.Htdocs)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log_level should keep its default, got %q", cfg.LogLevel)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`prot = 9000`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
