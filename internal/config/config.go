package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Auth     AuthConfig    `yaml:"auth"`
	Session  SessionConfig `yaml:"session"`
	Samplers SamplerConfig `yaml:"samplers"`
	Mock     MockConfig    `yaml:"mock"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogoPrefix     string   `yaml:"logo_prefix"`
}

// AuthConfig is the single shared secret. When Required is set, clients must
// present base64(Password).
type AuthConfig struct {
	Required bool   `yaml:"required"`
	Password string `yaml:"password"`
}

type SessionConfig struct {
	Path              string        `yaml:"path"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatGrace    time.Duration `yaml:"heartbeat_grace"`
	PushInterval      time.Duration `yaml:"push_interval"`
	MinPushInterval   time.Duration `yaml:"min_push_interval"`
	SendBuffer        int           `yaml:"send_buffer"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	CloseGrace        time.Duration `yaml:"close_grace"`
	Scheme            string        `yaml:"scheme"`
}

// SamplerConfig holds the cadence of each metric family.
type SamplerConfig struct {
	CPU          time.Duration `yaml:"cpu"`
	RAM          time.Duration `yaml:"ram"`
	Net          time.Duration `yaml:"net"`
	Uptime       time.Duration `yaml:"uptime"`
	Disks        time.Duration `yaml:"disks"`
	FsStats      time.Duration `yaml:"fs_stats"`
	FsSize       time.Duration `yaml:"fs_size"`
	NetRetry     time.Duration `yaml:"net_retry"`
	FailureLimit int           `yaml:"failure_limit"`
}

type MockConfig struct {
	Pattern string `yaml:"pattern"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       8080,
			Host:       "0.0.0.0",
			LogoPrefix: "/os_logos",
		},
		Session: SessionConfig{
			Path:              "/socket",
			HeartbeatInterval: 10 * time.Second,
			HeartbeatGrace:    1500 * time.Millisecond,
			PushInterval:      1500 * time.Millisecond,
			MinPushInterval:   100 * time.Millisecond,
			SendBuffer:        64,
			WriteTimeout:      10 * time.Second,
			CloseGrace:        time.Second,
			Scheme:            "dark",
		},
		Samplers: SamplerConfig{
			CPU:          time.Second,
			RAM:          time.Second,
			Net:          time.Second,
			Uptime:       time.Second,
			Disks:        60 * time.Second,
			FsStats:      2 * time.Second,
			FsSize:       30 * time.Second,
			NetRetry:     30 * time.Second,
			FailureLimit: 3,
		},
		Mock: MockConfig{
			Pattern: "steady",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: the service can be configured from the environment alone.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Environment variables understood by ApplyEnv.
const (
	EnvPort              = "PORT"
	EnvRequiredPW        = "REQUIRED_PW"
	EnvAuthPW            = "AUTH_PW"
	EnvHeartbeatInterval = "HEARTBEAT_INTERVAL"
)

// ApplyEnv overlays PORT, REQUIRED_PW, AUTH_PW and HEARTBEAT_INTERVAL onto
// the config. The process environment wins over envFile; envFile may be
// empty or missing.
func (c *Config) ApplyEnv(envFile string) error {
	fileEnv := gotenv.Env{}
	if envFile != "" {
		env, err := gotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading %s: %w", envFile, err)
		}
		if env != nil {
			fileEnv = env
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not a port number", EnvPort, v)
		}
		c.Server.Port = port
	}

	if v, ok := lookup(EnvRequiredPW); ok {
		switch strings.TrimSpace(v) {
		case "yes":
			c.Auth.Required = true
		case "no":
			c.Auth.Required = false
		default:
			return fmt.Errorf("%s: %q must be yes or no", EnvRequiredPW, v)
		}
	}

	if v, ok := lookup(EnvAuthPW); ok {
		c.Auth.Password = v
	}

	if v, ok := lookup(EnvHeartbeatInterval); ok {
		ms, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not a number of milliseconds", EnvHeartbeatInterval, v)
		}
		c.Session.HeartbeatInterval = time.Duration(ms) * time.Millisecond
	}

	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Auth.Required && c.Auth.Password == "" {
		errs = append(errs, errors.New("auth.password must be set when auth.required is enabled"))
	}
	if !strings.HasPrefix(c.Session.Path, "/") {
		errs = append(errs, fmt.Errorf("session.path %q must start with /", c.Session.Path))
	}
	if c.Session.HeartbeatGrace <= 0 {
		errs = append(errs, errors.New("session.heartbeat_grace must be positive"))
	}
	if c.Session.HeartbeatInterval <= c.Session.HeartbeatGrace {
		errs = append(errs, fmt.Errorf("session.heartbeat_interval %v must be longer than heartbeat_grace %v",
			c.Session.HeartbeatInterval, c.Session.HeartbeatGrace))
	}
	if c.Session.PushInterval <= 0 {
		errs = append(errs, errors.New("session.push_interval must be positive"))
	}
	if c.Session.MinPushInterval <= 0 || c.Session.MinPushInterval > c.Session.PushInterval {
		errs = append(errs, errors.New("session.min_push_interval must be positive and not above push_interval"))
	}
	if c.Session.SendBuffer <= 0 {
		errs = append(errs, errors.New("session.send_buffer must be positive"))
	}

	cadences := map[string]time.Duration{
		"cpu":       c.Samplers.CPU,
		"ram":       c.Samplers.RAM,
		"net":       c.Samplers.Net,
		"uptime":    c.Samplers.Uptime,
		"disks":     c.Samplers.Disks,
		"fs_stats":  c.Samplers.FsStats,
		"fs_size":   c.Samplers.FsSize,
		"net_retry": c.Samplers.NetRetry,
	}
	for _, name := range []string{"cpu", "ram", "net", "uptime", "disks", "fs_stats", "fs_size", "net_retry"} {
		if cadences[name] <= 0 {
			errs = append(errs, fmt.Errorf("samplers.%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}
