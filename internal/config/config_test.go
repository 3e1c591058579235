package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  host: "127.0.0.1"
  allowed_origins:
    - "https://dash.example.com"
auth:
  required: true
  password: "hunter2"
session:
  heartbeat_interval: 20s
  push_interval: 500ms
samplers:
  disks: 2m
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://dash.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Auth.Required || cfg.Auth.Password != "hunter2" {
		t.Errorf("Auth = %+v, want required with password", cfg.Auth)
	}
	if cfg.Session.HeartbeatInterval != 20*time.Second {
		t.Errorf("Session.HeartbeatInterval = %v, want 20s", cfg.Session.HeartbeatInterval)
	}
	if cfg.Session.PushInterval != 500*time.Millisecond {
		t.Errorf("Session.PushInterval = %v, want 500ms", cfg.Session.PushInterval)
	}
	if cfg.Samplers.Disks != 2*time.Minute {
		t.Errorf("Samplers.Disks = %v, want 2m", cfg.Samplers.Disks)
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Session.Path != "/socket" {
		t.Errorf("Session.Path = %q, want default /socket", cfg.Session.Path)
	}
	if cfg.Session.HeartbeatGrace != 1500*time.Millisecond {
		t.Errorf("Session.HeartbeatGrace = %v, want default 1.5s", cfg.Session.HeartbeatGrace)
	}
	if cfg.Samplers.CPU != time.Second {
		t.Errorf("Samplers.CPU = %v, want default 1s", cfg.Samplers.CPU)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() of invalid YAML succeeded")
	}
}

func TestApplyEnvFromFile(t *testing.T) {
	for _, key := range []string{EnvPort, EnvRequiredPW, EnvAuthPW, EnvHeartbeatInterval} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	envPath := filepath.Join(t.TempDir(), "config.env")
	content := "PORT=3000\nREQUIRED_PW=yes\nAUTH_PW=s3cret\nHEARTBEAT_INTERVAL=5000\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(envPath); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if !cfg.Auth.Required {
		t.Error("Auth.Required = false, want true")
	}
	if cfg.Auth.Password != "s3cret" {
		t.Errorf("Auth.Password = %q, want s3cret", cfg.Auth.Password)
	}
	if cfg.Session.HeartbeatInterval != 5*time.Second {
		t.Errorf("Session.HeartbeatInterval = %v, want 5s", cfg.Session.HeartbeatInterval)
	}
}

func TestApplyEnvProcessWinsOverFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "config.env")
	if err := os.WriteFile(envPath, []byte("PORT=3000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPort, "4000")

	cfg := Default()
	if err := cfg.ApplyEnv(envPath); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000 from the process environment", cfg.Server.Port)
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("ApplyEnv() with a missing file = %v, want nil", err)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{EnvRequiredPW, "maybe"},
		{EnvPort, "eighty"},
		{EnvHeartbeatInterval, "10s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := Default()
			err := cfg.ApplyEnv("")
			if err == nil {
				t.Fatalf("ApplyEnv() with %s=%q succeeded", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"password required", func(c *Config) { c.Auth.Required = true }, "auth.password"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"path", func(c *Config) { c.Session.Path = "socket" }, "session.path"},
		{"grace exceeds period", func(c *Config) {
			c.Session.HeartbeatInterval = time.Second
			c.Session.HeartbeatGrace = 2 * time.Second
		}, "heartbeat_interval"},
		{"push interval", func(c *Config) { c.Session.PushInterval = 0 }, "push_interval"},
		{"cadence", func(c *Config) { c.Samplers.FsSize = 0 }, "samplers.fs_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}
